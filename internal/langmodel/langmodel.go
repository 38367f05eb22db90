// Package langmodel provides the language model facade for tonegrid.
//
// The facade merges a base statistical model with user-added phrases,
// excluded phrases, a phrase replacement table, and an optional external
// converter, and answers context-free unigram queries for the lattice
// builder. Unigrams for a key are produced through a fixed pipeline:
//
//  1. Fetch raw unigrams for the key, user-contributed entries first.
//  2. Drop entries whose value is excluded for the key.
//  3. Rewrite surviving values through the replacement table, if enabled.
//  4. Rewrite values again through the external converter, if enabled.
//  5. Drop values already produced during the query, keeping first-seen
//     order.
//
// Bigram context is deliberately unsupported; the decoder supplies
// structure through span composition, not through model-provided bigrams.
package langmodel

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Unigram is a single (key, value, score) entry from the language model.
// Score is a log-likelihood-like number; higher is better. Unigrams are
// never mutated after creation.
type Unigram struct {
	Key   string
	Value string
	Score float64
}

// Model is the read surface the lattice builder depends on.
type Model interface {
	// UnigramsForKey returns the filtered unigram list for a reading key.
	UnigramsForKey(key string) []Unigram
	// HasUnigramsForKey reports raw, pre-filter availability. A key may
	// report true here yet yield an empty filtered list.
	HasUnigramsForKey(key string) bool
}

// StaticModel is a fixed in-memory Model. The control CLI and tests use it
// where the full facade is not needed.
type StaticModel map[string][]Unigram

// UnigramsForKey returns the unigrams stored for key.
func (m StaticModel) UnigramsForKey(key string) []Unigram { return m[key] }

// HasUnigramsForKey reports whether any unigrams are stored for key.
func (m StaticModel) HasUnigramsForKey(key string) bool { return len(m[key]) > 0 }

// parseBaseModel reads the base dictionary format: one entry per line,
// "reading value score", with '#' comment lines. Malformed lines are
// skipped. Values are NFC-normalized.
func parseBaseModel(r io.Reader) (map[string][]Unigram, error) {
	table := make(map[string][]Unigram)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		score, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		key := fields[0]
		value := norm.NFC.String(fields[1])
		table[key] = append(table[key], Unigram{Key: key, Value: value, Score: score})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// parsePhraseTable reads the user-phrase format: one entry per line,
// "value reading", with '#' comment lines. Entries carry score 0 so they
// rank above base-model unigrams. The same format describes the excluded
// phrase list.
func parsePhraseTable(r io.Reader) (map[string][]Unigram, error) {
	table := make(map[string][]Unigram)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		value := norm.NFC.String(fields[0])
		key := fields[1]
		table[key] = append(table[key], Unigram{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
