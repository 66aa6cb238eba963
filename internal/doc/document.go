package doc

import "slices"

// Document is a JSON object holding one named bundle of application state.
type Document map[string]any

// Clone returns a shallow copy of d. A nil document clones to an empty one.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Keys returns the top-level field names in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Merge returns a new document holding every field of base, overridden by
// every field of over. Nested objects are replaced, not merged.
//
// Neither argument is modified.
func Merge(base, over Document) Document {
	out := make(Document, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
