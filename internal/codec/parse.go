package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Parse decodes canonical (or any valid) JSON bytes into the codec's value
// model: objects become *OrderedMap (preserving on-wire key order), arrays
// become []any, and scalars become string/bool/nil/float64/int64.
func Parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	val, err := parseValue(dec)
	if err != nil {
		return nil, newErr("parse", "decoding", err)
	}

	// Reject trailing garbage after the single top-level value.
	if _, err := dec.Token(); err != io.EOF {
		return nil, newErr("parse", "trailing data after top-level value", nil)
	}

	return val, nil
}

func parseValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}

	case json.Number:
		return numberToGo(t)

	case string, bool, nil:
		return t, nil

	default:
		return nil, fmt.Errorf("unexpected token %#v", tok)
	}
}

// numberToGo converts a json.Number to int64 when it round-trips exactly,
// otherwise float64. This keeps large timestamps precise.
func numberToGo(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}

	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", n.String(), err)
	}

	return f, nil
}

func parseObject(dec *json.Decoder) (*OrderedMap, error) {
	obj := NewOrderedMap()

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %#v", keyTok)
		}

		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}

		obj.Set(key, val)
	}

	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return obj, nil
}

func parseArray(dec *json.Decoder) ([]any, error) {
	arr := []any{}

	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}

		arr = append(arr, val)
	}

	// Consume the closing ']'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return arr, nil
}
