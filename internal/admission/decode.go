package admission

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// DecodeSubmission decodes a checkout payload one key at a time, so a single
// wrongly typed value does not discard the rest of the submission. Keys that
// cannot be decoded are kept on the submission and reported by the field
// check as invalid. An error is returned only when body is not a JSON object;
// the submission is empty then.
func DecodeSubmission(body []byte) (*Submission, error) {
	sub := &Submission{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return sub, err
	}

	for _, key := range sortedKeys(fields) {
		if strings.EqualFold(key, "items") {
			sub.malformed = append(sub.malformed, decodeItems(sub, fields[key])...)
			continue
		}
		if err := decodeKey(sub, key, fields[key]); err != nil {
			sub.malformed = append(sub.malformed, key)
		}
	}

	return sub, nil
}

func decodeItems(sub *Submission, raw json.RawMessage) []string {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []string{"items"}
	}

	var malformed []string
	sub.Items = make([]Item, len(elems))
	for i, elem := range elems {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(elem, &fields); err != nil {
			malformed = append(malformed, fmt.Sprintf("items[%d]", i))
			continue
		}
		for _, key := range sortedKeys(fields) {
			if err := decodeKey(&sub.Items[i], key, fields[key]); err != nil {
				malformed = append(malformed, fmt.Sprintf("items[%d].%s", i, key))
			}
		}
	}

	return malformed
}

// decodeKey sets the single field of dst tagged key
func decodeKey(dst any, key string, raw json.RawMessage) error {
	doc, err := json.Marshal(map[string]json.RawMessage{key: raw})
	if err != nil {
		return err
	}
	return json.Unmarshal(doc, dst)
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// withoutCovered drops the missing paths already reported as malformed,
// including the fields of a malformed item.
func withoutCovered(missing, malformed []string) []string {
	out := missing[:0:0]
	for _, path := range missing {
		covered := false
		for _, bad := range malformed {
			if path == bad || strings.HasPrefix(path, bad+".") {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, path)
		}
	}
	return out
}
