// Package override implements the user override model: a capacity-bounded
// cache that remembers which candidate the user confirmed for a local
// decoding context, with a time-decayed weight so stale observations bias
// future decodes less and less.
package override

import (
	"container/list"
	"fmt"
	"math"
	"time"

	"tonegrid/internal/lattice"
)

// Record is one remembered override. Signature identifies the decoding
// context it was observed in.
type Record struct {
	Signature string
	Value     string
	Timestamp time.Time
}

// Suggestion is the result of a successful lookup. Weight is the decayed
// confidence in [0, 1]; callers bias the decoder with a score proportional
// to it rather than structurally forcing the candidate.
type Suggestion struct {
	Value  string
	Weight float64
}

// Model is the override cache. Eviction is capacity-driven only: records
// are never deleted merely for being stale, they just decay toward zero
// weight.
type Model struct {
	capacity int
	halfLife float64 // seconds

	lru   *list.List // most recent at front, elements hold *Record
	index map[string]*list.Element
}

// NewModel creates a model with the given capacity and half-life.
func NewModel(capacity int, halfLife time.Duration) *Model {
	return &Model{
		capacity: capacity,
		halfLife: halfLife.Seconds(),
		lru:      list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Len returns the number of records held.
func (m *Model) Len() int { return m.lru.Len() }

// Observe records that the user confirmed value at cursorIndex in the
// walked path. An existing record for the same context is refreshed and
// moved to the front; otherwise the least-recently-used record is evicted
// once the capacity is exceeded.
func (m *Model) Observe(path []lattice.NodeAnchor, cursorIndex int, value string, now time.Time) {
	signature := contextSignature(path, cursorIndex)
	if signature == "" {
		return
	}

	if elem, ok := m.index[signature]; ok {
		rec := elem.Value.(*Record)
		rec.Value = value
		rec.Timestamp = now
		m.lru.MoveToFront(elem)
		return
	}

	rec := &Record{Signature: signature, Value: value, Timestamp: now}
	m.index[signature] = m.lru.PushFront(rec)

	for m.lru.Len() > m.capacity {
		oldest := m.lru.Back()
		m.lru.Remove(oldest)
		delete(m.index, oldest.Value.(*Record).Signature)
	}
}

// Suggest looks up the override for the current context. The second
// return value is false when no record exists. The weight halves every
// half-life interval: w = 2^(-age/halfLife).
func (m *Model) Suggest(path []lattice.NodeAnchor, cursorIndex int, now time.Time) (Suggestion, bool) {
	signature := contextSignature(path, cursorIndex)
	if signature == "" {
		return Suggestion{}, false
	}
	elem, ok := m.index[signature]
	if !ok {
		return Suggestion{}, false
	}

	rec := elem.Value.(*Record)
	age := now.Sub(rec.Timestamp).Seconds()
	if age < 0 {
		age = 0
	}
	weight := math.Exp2(-age / m.halfLife)
	return Suggestion{Value: rec.Value, Weight: weight}, true
}

// Export snapshots all records, most recently used first.
func (m *Model) Export() []Record {
	out := make([]Record, 0, m.lru.Len())
	for e := m.lru.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*Record))
	}
	return out
}

// Restore replaces the model contents with a snapshot in the order
// produced by Export. Records beyond the capacity are dropped.
func (m *Model) Restore(records []Record) {
	m.lru.Init()
	m.index = make(map[string]*list.Element, len(records))
	for _, rec := range records {
		if m.lru.Len() >= m.capacity {
			break
		}
		if _, ok := m.index[rec.Signature]; ok {
			continue
		}
		r := rec
		m.index[r.Signature] = m.lru.PushBack(&r)
	}
}

// contextSignature derives the cache key from the nodes adjacent to the
// cursor in the walked path: the reading key and confirmed value of the
// preceding node, and the reading key (never the value, which is what the
// model predicts) of the node covering the cursor.
func contextSignature(path []lattice.NodeAnchor, cursorIndex int) string {
	if cursorIndex <= 0 {
		return ""
	}

	accumulated := 0
	for i, anchor := range path {
		accumulated += anchor.SpanningLength
		if accumulated < cursorIndex {
			continue
		}
		prevKey, prevValue := "", ""
		if i > 0 {
			prevKey = path[i-1].Node.Key()
			prevValue = path[i-1].Node.CurrentValue()
		}
		return fmt.Sprintf("(%s,%s),(%s)", prevKey, prevValue, anchor.Node.Key())
	}
	return ""
}
