package hashpolicy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// ErrInvalidEntry indicates a table entry with an unsupported shape.
var ErrInvalidEntry = errors.New("invalid partial size entry")

// rangeObject is the object form of a single range: {"size":"4KB","offset":"1KB"}.
type rangeObject struct {
	Size   string `json:"size"`
	Offset string `json:"offset"`
}

// Parse builds a policy from the HASH_PARTIAL_SIZES encoding: a JSON object
// whose keys are extensions and whose values are a size string, a
// [head, tail] pair of size strings, or a {"size","offset"} object.
// An empty string yields the default policy.
func Parse(raw string, opts ...Option) (*Policy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return New(opts...)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("parsing partial size table: %w", err)
	}

	all := make([]Option, 0, len(opts)+len(entries))
	all = append(all, opts...)
	for ext, value := range entries {
		if types.NormalizeExt(ext) == "" {
			return nil, fmt.Errorf("%w: empty extension key", ErrInvalidEntry)
		}
		spec, err := parseEntry(value)
		if err != nil {
			return nil, fmt.Errorf("extension %q: %w", ext, err)
		}
		all = append(all, WithEntry(ext, spec))
	}

	return New(all...)
}

// parseEntry decodes one table value.
func parseEntry(value json.RawMessage) (PartialSpec, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return PartialSpec{}, ErrInvalidEntry
	}

	switch value[0] {
	case '"':
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return PartialSpec{}, err
		}
		n, err := types.ParseSize(s)
		if err != nil {
			return PartialSpec{}, err
		}
		return Single(n, 0), nil

	case '[':
		var pair []string
		if err := json.Unmarshal(value, &pair); err != nil {
			return PartialSpec{}, fmt.Errorf("%w: expected an array of size strings", ErrInvalidEntry)
		}
		if len(pair) != 2 {
			return PartialSpec{}, fmt.Errorf("%w: expected [head, tail], got %d elements", ErrInvalidEntry, len(pair))
		}
		head, err := types.ParseSize(pair[0])
		if err != nil {
			return PartialSpec{}, fmt.Errorf("head: %w", err)
		}
		tail, err := types.ParseSize(pair[1])
		if err != nil {
			return PartialSpec{}, fmt.Errorf("tail: %w", err)
		}
		return Dual(head, tail), nil

	case '{':
		var obj rangeObject
		dec := json.NewDecoder(bytes.NewReader(value))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&obj); err != nil {
			return PartialSpec{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		if obj.Size == "" {
			return PartialSpec{}, fmt.Errorf("%w: object form needs a size", ErrInvalidEntry)
		}
		length, err := types.ParseSize(obj.Size)
		if err != nil {
			return PartialSpec{}, fmt.Errorf("size: %w", err)
		}
		var offset int64
		if obj.Offset != "" {
			if offset, err = types.ParseSize(obj.Offset); err != nil {
				return PartialSpec{}, fmt.Errorf("offset: %w", err)
			}
		}
		return Single(length, offset), nil

	default:
		return PartialSpec{}, fmt.Errorf("%w: %s", ErrInvalidEntry, value)
	}
}
