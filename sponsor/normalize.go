package sponsor

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/thirdfy/agentkit"
)

// NormalizeQuantity renders a numeric transaction field as a 0x-prefixed
// hex string, the only representation the wallet API accepts. Accepted
// inputs: *big.Int, big.Int, signed and unsigned integers, integral floats,
// json.Number, decimal.Decimal, and decimal or hex strings. An empty or nil
// input normalizes to "".
func NormalizeQuantity(value agentkit.Quantity) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case *big.Int:
		if v == nil {
			return "", nil
		}
		return encodeBig(v)
	case big.Int:
		return encodeBig(&v)
	case int:
		return encodeBig(big.NewInt(int64(v)))
	case int32:
		return encodeBig(big.NewInt(int64(v)))
	case int64:
		return encodeBig(big.NewInt(v))
	case uint:
		return encodeBig(new(big.Int).SetUint64(uint64(v)))
	case uint32:
		return encodeBig(new(big.Int).SetUint64(uint64(v)))
	case uint64:
		return encodeBig(new(big.Int).SetUint64(v))
	case float32:
		return normalizeFloat(float64(v))
	case float64:
		return normalizeFloat(v)
	case json.Number:
		return normalizeString(v.String())
	case decimal.Decimal:
		if !v.IsInteger() {
			return "", fmt.Errorf("quantity %s is not an integer", v)
		}
		return encodeBig(v.BigInt())
	case string:
		return normalizeString(v)
	default:
		return "", fmt.Errorf("unsupported quantity type %T", value)
	}
}

func normalizeFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return "", fmt.Errorf("quantity %v is not an integer", v)
	}

	n, _ := new(big.Float).SetFloat64(v).Int(nil)
	return encodeBig(n)
}

func normalizeString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return "", fmt.Errorf("invalid hex quantity: %s", s)
		}
		return encodeBig(n)
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return "", fmt.Errorf("invalid decimal quantity: %s", s)
	}
	return encodeBig(n)
}

func encodeBig(n *big.Int) (string, error) {
	if n.Sign() < 0 {
		return "", fmt.Errorf("quantity must not be negative: %s", n)
	}
	return hexutil.EncodeBig(n), nil
}
