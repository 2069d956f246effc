package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

var errTrailingData = errors.New("unexpected data after top-level value")

// DecodeOrdered parses JSON into driver-ready values: objects become bson.D
// (key order preserved, later duplicates overwrite earlier ones), arrays
// become bson.A, integral numbers become int64 and the rest float64.
func DecodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			doc := bson.D{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				doc = setKey(doc, key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			arr := bson.A{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, errors.New("unexpected delimiter")
	case json.Number:
		return numberValue(t)
	default:
		// string, bool or nil
		return t, nil
	}
}

func numberValue(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	if math.IsInf(f, 0) {
		return nil, errors.New("number out of range")
	}
	return f, nil
}

func setKey(doc bson.D, key string, val any) bson.D {
	for i := range doc {
		if doc[i].Key == key {
			doc[i].Value = val
			return doc
		}
	}
	return append(doc, bson.E{Key: key, Value: val})
}

// Plain converts ordered documents into maps and arrays into []any,
// recursively, for JSON responses and the in-memory store.
func Plain(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(bson.M, len(t))
		for _, e := range t {
			m[e.Key] = Plain(e.Value)
		}
		return m
	case bson.M:
		m := make(bson.M, len(t))
		for k, val := range t {
			m[k] = Plain(val)
		}
		return m
	case map[string]any:
		m := make(bson.M, len(t))
		for k, val := range t {
			m[k] = Plain(val)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Plain(val)
		}
		return out
	default:
		return v
	}
}

// PlainDoc is Plain for a document; nil stays nil.
func PlainDoc(d bson.D) bson.M {
	if d == nil {
		return nil
	}
	return Plain(d).(bson.M)
}

// isPlainObject reports whether v is a key/value object (not an array, not a scalar).
func isPlainObject(v any) bool {
	switch v.(type) {
	case bson.D, bson.M, map[string]any:
		return true
	}
	return false
}

// toD returns the top level of a plain object as bson.D. Map keys are sorted
// so the result is deterministic.
func toD(v any) bson.D {
	switch t := v.(type) {
	case bson.D:
		return t
	case bson.M:
		return mapToD(t)
	case map[string]any:
		return mapToD(t)
	}
	return bson.D{}
}

func mapToD(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d
}
