package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/unicode/norm"
)

// ParseError reports a stored value that is not a JSON object.
// Readers treat it as a cache miss.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse document: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Encode serializes d to compact JSON.
// Keys are sorted, strings NFC normalized, and HTML characters left as is.
func Encode(d Document) ([]byte, error) {
	if d == nil {
		d = Document{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalize(map[string]any(d))); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a JSON object. Anything else, including JSON null, an array
// or trailing data, yields a *ParseError.
func Decode(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Err: fmt.Errorf("trailing data after document")}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &ParseError{Err: fmt.Errorf("expected JSON object, got %T", raw)}
	}
	return Document(convertNumbers(obj).(map[string]any)), nil
}

// Normalize round-trips d through the codec, yielding the value a store would
// hand back after persisting it.
func Normalize(d Document) (Document, error) {
	data, err := Encode(d)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func normalize(v any) any {
	switch val := v.(type) {
	case string:
		return norm.NFC.String(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[norm.NFC.String(k)] = normalize(elem)
		}
		return out
	case Document:
		return normalize(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalize(elem)
		}
		return out
	default:
		return v
	}
}

func convertNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, err := val.Float64()
		if err != nil || math.IsInf(f, 0) {
			return val.String()
		}
		return f
	case map[string]any:
		for k, elem := range val {
			val[k] = convertNumbers(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = convertNumbers(elem)
		}
		return val
	default:
		return v
	}
}
