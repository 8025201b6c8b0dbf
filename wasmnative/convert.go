package wasmnative

import (
	"github.com/tetratelabs/wazero/api"
)

// numeric reports whether every type is a core numeric type.
func numeric(types []api.ValueType) bool {
	for _, t := range types {
		switch t {
		case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64:
		default:
			return false
		}
	}
	return true
}

// encode converts a runtime number to a wasm stack value. Integers are
// truncated toward zero.
func encode(t api.ValueType, n float64) uint64 {
	switch t {
	case api.ValueTypeI32:
		return api.EncodeI32(int32(n))
	case api.ValueTypeI64:
		return api.EncodeI64(int64(n))
	case api.ValueTypeF32:
		return api.EncodeF32(float32(n))
	default:
		return api.EncodeF64(n)
	}
}

func decode(t api.ValueType, v uint64) float64 {
	switch t {
	case api.ValueTypeI32:
		return float64(api.DecodeI32(v))
	case api.ValueTypeI64:
		return float64(int64(v))
	case api.ValueTypeF32:
		return float64(api.DecodeF32(v))
	default:
		return api.DecodeF64(v)
	}
}
