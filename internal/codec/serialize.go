package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Serialize produces the canonical byte encoding of value. Objects must be
// *OrderedMap (plain map[string]any is rejected — see value.go doc comment);
// arrays are []any; scalars are string, bool, nil, or any Go numeric type.
// Output has no superfluous whitespace and is valid UTF-8.
func Serialize(value any) ([]byte, error) {
	var buf bytes.Buffer

	if err := writeValue(&buf, value); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
		return nil

	case *OrderedMap:
		return writeObject(buf, v)

	case map[string]any:
		return newErr("serialize", "plain map[string]any has no defined key order; use *OrderedMap", nil)

	case []any:
		return writeArray(buf, v)

	case string:
		return writeJSONScalar(buf, v)

	case bool:
		return writeJSONScalar(buf, v)

	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return writeNumber(buf, v)

	default:
		return newErr("serialize", fmt.Sprintf("non-serializable value of type %T", value), nil)
	}
}

func writeObject(buf *bytes.Buffer, obj *OrderedMap) error {
	buf.WriteByte('{')

	for i, key := range obj.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}

		if err := writeJSONScalar(buf, key); err != nil {
			return err
		}

		buf.WriteByte(':')

		val, _ := obj.Get(key)
		if err := writeValue(buf, val); err != nil {
			return err
		}
	}

	buf.WriteByte('}')

	return nil
}

func writeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}

		if err := writeValue(buf, elem); err != nil {
			return err
		}
	}

	buf.WriteByte(']')

	return nil
}

// writeJSONScalar delegates strings and booleans to encoding/json, which
// already produces compact, correctly-escaped, deterministic output for
// these types.
func writeJSONScalar(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return newErr("serialize", "encoding scalar", err)
	}

	buf.Write(b)

	return nil
}

func writeNumber(buf *bytes.Buffer, v any) error {
	f, ok := toFloat64(v)
	if !ok {
		return newErr("serialize", fmt.Sprintf("unrepresentable number %v", v), nil)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return newErr("serialize", "NaN and Infinity are not serializable", nil)
	}

	// json.Marshal on a float64 or int64 directly produces the canonical
	// shortest round-trippable form; avoid collapsing int64 into float64
	// for magnitudes that would lose precision (timestamps included).
	switch n := v.(type) {
	case int64:
		return writeJSONScalar(buf, n)
	case int:
		return writeJSONScalar(buf, int64(n))
	case uint64:
		return writeJSONScalar(buf, n)
	default:
		return writeJSONScalar(buf, f)
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
