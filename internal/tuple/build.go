package tuple

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Encode builds a wire-format tuple from one Go value per attribute of d.
// A nil value encodes as null; otherwise values[i] must be int32/int,
// float32/float64, or string matching d[i].Type.
func Encode(d Descriptor, values []any) ([]byte, error) {
	if len(values) != len(d) {
		return nil, fmt.Errorf("tuple: Encode got %d values for %d attributes", len(values), len(d))
	}
	ni := make([]byte, NullIndicatorSize(len(d)))
	var payload []byte

	for i, a := range d {
		v := values[i]
		if v == nil {
			setNullBit(ni, i, true)
			continue
		}
		switch a.Type {
		case TypeInt:
			n, err := toInt32(v)
			if err != nil {
				return nil, fmt.Errorf("tuple: attribute %q: %w", a.Name, err)
			}
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(n))
			payload = append(payload, b[:]...)
		case TypeFloat:
			f, err := toFloat32(v)
			if err != nil {
				return nil, fmt.Errorf("tuple: attribute %q: %w", a.Name, err)
			}
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
			payload = append(payload, b[:]...)
		case TypeVarChar:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("tuple: attribute %q: want string, got %T", a.Name, v)
			}
			var lb [4]byte
			binary.LittleEndian.PutUint32(lb[:], uint32(len(s)))
			payload = append(payload, lb[:]...)
			payload = append(payload, s...)
		default:
			return nil, ErrUnknownType
		}
	}

	out := make([]byte, 0, len(ni)+len(payload))
	out = append(out, ni...)
	out = append(out, payload...)
	return out, nil
}

func toInt32(v any) (int32, error) {
	switch n := v.(type) {
	case int32:
		return n, nil
	case int:
		return int32(n), nil
	default:
		return 0, fmt.Errorf("want int32, got %T", v)
	}
}

func toFloat32(v any) (float32, error) {
	switch n := v.(type) {
	case float32:
		return n, nil
	case float64:
		return float32(n), nil
	default:
		return 0, fmt.Errorf("want float32, got %T", v)
	}
}

// Decode returns one Go value (nil for null, int32, float32, or string) per
// attribute of d.
func Decode(d Descriptor, data []byte) ([]any, error) {
	size, err := EncodedSize(d, data)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(d))
	for i := range d {
		scratch, err := ExtractOne(d, data, size, i, nil)
		if err != nil {
			return nil, err
		}
		if scratch[0] == 0x80 {
			out[i] = nil
			continue
		}
		fieldBytes := scratch[1:]
		switch d[i].Type {
		case TypeInt:
			out[i] = int32(binary.LittleEndian.Uint32(fieldBytes))
		case TypeFloat:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(fieldBytes))
		case TypeVarChar:
			l := binary.LittleEndian.Uint32(fieldBytes)
			out[i] = string(fieldBytes[4 : 4+l])
		default:
			return nil, ErrUnknownType
		}
	}
	return out, nil
}

// Format renders a tuple as "Name: value, Name2: value2", with null fields
// shown as NULL, matching the CLI's printRecord convention.
func Format(d Descriptor, data []byte) (string, error) {
	values, err := Decode(d, data)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(d))
	for i, a := range d {
		v := values[i]
		if v == nil {
			parts[i] = a.Name + ": NULL"
			continue
		}
		switch n := v.(type) {
		case float32:
			parts[i] = a.Name + ": " + strconv.FormatFloat(float64(n), 'g', -1, 32)
		default:
			parts[i] = fmt.Sprintf("%s: %v", a.Name, n)
		}
	}
	return strings.Join(parts, ", "), nil
}
