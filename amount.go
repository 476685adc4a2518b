package agentkit

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the decimal precision of the EVM native asset
const EtherDecimals = 18

// LamportDecimals is the decimal precision of the Solana native asset
const LamportDecimals = 9

// ParseUnits converts a human-readable decimal amount to base units.
// Fractional digits beyond the asset's precision are rejected, not
// truncated.
//
// Args:
//   - amount: Decimal amount string (e.g., "1.5")
//   - decimals: Asset precision (e.g., 18 for ETH, 6 for USDC)
//
// Returns:
//   - The amount in base units
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q must not be negative", amount)
	}

	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q exceeds %d decimal places", amount, decimals)
	}

	return scaled.BigInt(), nil
}

// FormatUnits converts base units to a human-readable decimal string
func FormatUnits(amount *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseEther converts an ether-denominated decimal string to wei
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, EtherDecimals)
}

// FormatEther converts wei to an ether-denominated decimal string
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}
