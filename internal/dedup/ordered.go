package dedup

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// orderedEntry is one key/value pair from a JSON object, in the order it
// appeared on the wire.
type orderedEntry struct {
	key   string
	value map[string]interface{}
}

// decodeOrderedObject parses a JSON object of sub-mappings while
// preserving key order — encoding/json's map decoding does not, and the
// po stream's fingerprint is order-dependent.
func decodeOrderedObject(raw []byte) ([]orderedEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("dedup: decode po object: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("dedup: expected po payload to be a JSON object")
	}

	var entries []orderedEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("dedup: decode po key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("dedup: po object key is not a string")
		}
		var val map[string]interface{}
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("dedup: decode po entry %q: %w", key, err)
		}
		entries = append(entries, orderedEntry{key: key, value: val})
	}
	return entries, nil
}
