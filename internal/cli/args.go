package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// parseAssignments turns "column=value" arguments into a row. Values are
// text, matching what CSV tables hold. "column:=json" decodes a typed JSON
// value instead, so "note:=null" or "yearID:=1927" bind NULL or a number.
func parseAssignments(args []string) (types.Row, error) {
	row := make(types.Row, len(args))
	for _, arg := range args {
		col, value, typed, err := splitAssignment(arg)
		if err != nil {
			return nil, err
		}
		if !typed {
			row[col] = value
			continue
		}
		v, err := decodeJSONValue(value)
		if err != nil {
			return nil, userError(fmt.Errorf("invalid JSON value in %q: %w", arg, err))
		}
		row[col] = v
	}
	return row, nil
}

func splitAssignment(arg string) (col, value string, typed bool, err error) {
	col, value, ok := strings.Cut(arg, "=")
	if !ok || col == "" || col == ":" {
		return "", "", false, userError(fmt.Errorf("invalid argument %q (expected column=value)", arg))
	}
	if c, isTyped := strings.CutSuffix(col, ":"); isTyped {
		return c, value, true, nil
	}
	return col, value, false, nil
}

// decodeJSONValue decodes one JSON value. Integral numbers become int64 and
// other numbers float64.
func decodeJSONValue(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after value")
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		return n.Float64()
	}
	return v, nil
}

// parseKey converts key arguments to key values. Like assignments, a
// leading ":" marks a JSON value.
func parseKey(args []string) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		raw, typed := strings.CutPrefix(arg, ":")
		if !typed {
			out[i] = arg
			continue
		}
		v, err := decodeJSONValue(raw)
		if err != nil {
			return nil, userError(fmt.Errorf("invalid JSON key value %q: %w", arg, err))
		}
		out[i] = v
	}
	return out, nil
}
