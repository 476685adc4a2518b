package mcp

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// coerceContractArgs converts JSON-decoded tool arguments into the Go
// values the ABI packer expects. JSON carries addresses and big integers as
// strings, so each argument is coerced against the method's declared input
// type.
func coerceContractArgs(abiJSON, method string, raw []interface{}) ([]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	m, ok := parsedABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %s not found in ABI", method)
	}
	if len(raw) != len(m.Inputs) {
		return nil, fmt.Errorf("method %s expects %d arguments, got %d",
			method, len(m.Inputs), len(raw))
	}

	converted := make([]interface{}, len(raw))
	for i, input := range m.Inputs {
		value, err := coerceArg(input.Type, raw[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, input.Type.String(), err)
		}
		converted[i] = value
	}
	return converted, nil
}

func coerceArg(t abi.Type, raw interface{}) (interface{}, error) {
	switch t.T {
	case abi.AddressTy:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected an address string")
		}
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%q is not a hex address", s)
		}
		return common.HexToAddress(s), nil

	case abi.UintTy:
		n, err := coerceBig(raw)
		if err != nil {
			return nil, err
		}
		if n.Sign() < 0 {
			return nil, fmt.Errorf("negative value for unsigned type")
		}
		switch {
		case t.Size > 64:
			return n, nil
		case t.Size > 32:
			return n.Uint64(), nil
		case t.Size > 16:
			return uint32(n.Uint64()), nil
		case t.Size > 8:
			return uint16(n.Uint64()), nil
		default:
			return uint8(n.Uint64()), nil
		}

	case abi.IntTy:
		n, err := coerceBig(raw)
		if err != nil {
			return nil, err
		}
		switch {
		case t.Size > 64:
			return n, nil
		case t.Size > 32:
			return n.Int64(), nil
		case t.Size > 16:
			return int32(n.Int64()), nil
		case t.Size > 8:
			return int16(n.Int64()), nil
		default:
			return int8(n.Int64()), nil
		}

	case abi.BoolTy:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a boolean")
		}
		return b, nil

	case abi.StringTy:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string")
		}
		return s, nil

	case abi.BytesTy:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected a 0x-prefixed hex string")
		}
		return common.FromHex(s), nil

	case abi.FixedBytesTy:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected a 0x-prefixed hex string")
		}
		decoded := common.FromHex(s)
		if len(decoded) != t.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(decoded))
		}
		if t.Size == 32 {
			var out [32]byte
			copy(out[:], decoded)
			return out, nil
		}
		return nil, fmt.Errorf("unsupported fixed bytes size %d", t.Size)

	default:
		return nil, fmt.Errorf("unsupported argument type %s", t.String())
	}
}

func coerceBig(raw interface{}) (*big.Int, error) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, fmt.Errorf("empty numeric string")
		}
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			n, ok := new(big.Int).SetString(s[2:], 16)
			if !ok {
				return nil, fmt.Errorf("unparseable hex integer %q", v)
			}
			return n, nil
		}
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("unparseable integer %q", v)
		}
		return n, nil

	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		return big.NewInt(int64(v)), nil

	default:
		return nil, fmt.Errorf("expected a number or numeric string, got %T", raw)
	}
}
