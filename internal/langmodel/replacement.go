package langmodel

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/unicode/norm"
)

// replacementSchema constrains the JSON replacement map format: a flat
// object mapping original phrases to replacements.
const replacementSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": {"type": "string", "minLength": 1}
}`

var compiledReplacementSchema = jsonschema.MustCompileString(
	"phrase-replacement.schema.json", replacementSchema)

// parseReplacementMap reads a phrase replacement table. Two formats are
// accepted: the text format with one "old new" pair per line ('#' starts a
// comment), and a JSON object validated against the embedded schema. JSON
// is detected by a leading '{'.
func parseReplacementMap(r io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return parseJSONReplacementMap(trimmed)
	}

	table := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		table[norm.NFC.String(fields[0])] = norm.NFC.String(fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

func parseJSONReplacementMap(data []byte) (map[string]string, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("decode replacement map: %w", err)
	}
	if err := compiledReplacementSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("validate replacement map: %w", err)
	}

	raw := instance.(map[string]any)
	table := make(map[string]string, len(raw))
	for k, v := range raw {
		table[norm.NFC.String(k)] = norm.NFC.String(v.(string))
	}
	return table, nil
}
