package keydb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNotObject = errors.New("not a JSON object")

// member is one key/value pair of a JSON object.
type member struct {
	Key   string
	Value json.RawMessage
}

// members decodes a JSON object into its pairs in document order. A repeated
// key keeps its first position and takes the last value.
func members(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}

	var out []member
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		if i, dup := index[key]; dup {
			out[i].Value = raw
			continue
		}
		index[key] = len(out)
		out = append(out, member{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseRange parses a "START-END" bucket key. Each bound may carry
// surrounding whitespace.
func ParseRange(key string) (start, end int, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("range %q: want START-END", key)
	}
	if start, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, fmt.Errorf("range %q: %w", key, err)
	}
	if end, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, fmt.Errorf("range %q: %w", key, err)
	}
	return start, end, nil
}

func decodeBucket(key string, raw json.RawMessage) Bucket {
	b := Bucket{Range: key}
	b.Start, b.End, b.Err = ParseRange(key)
	if b.Err != nil {
		return b
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		b.Err = fmt.Errorf("record %q: %w", key, errNotObject)
		return b
	}
	if err := json.Unmarshal(trimmed, &b.Record); err != nil {
		b.Err = fmt.Errorf("record %q: %w", key, err)
	}
	return b
}
