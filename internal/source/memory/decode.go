package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"pivotboard/internal/core"
)

// Decode reads a result set document. Numbers are kept as json.Number so
// large integers survive; a bare array of row objects is also accepted.
func Decode(r io.Reader) (core.ResultSet, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return core.ResultSet{}, fmt.Errorf("decode result set: %w", err)
	}

	var rs core.ResultSet
	if len(raw) > 0 && raw[0] == '[' {
		if err := unmarshalNumbers(raw, &rs.Rows); err != nil {
			return core.ResultSet{}, fmt.Errorf("decode rows: %w", err)
		}
		return rs, nil
	}
	if err := unmarshalNumbers(raw, &rs); err != nil {
		return core.ResultSet{}, fmt.Errorf("decode result set: %w", err)
	}
	return rs, nil
}

func unmarshalNumbers(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
