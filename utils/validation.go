package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimals of ether and of every network we ship.
const EtherDecimals = 18

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	return validate
}

// ValidateAmount checks that amount is a positive decimal written out in
// plain digits. Exponent notation is rejected.
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	if err := validate.Var(amount, "numeric"); err != nil {
		return nil, fmt.Errorf("invalid amount format: %q", amount)
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if !dec.IsPositive() {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &dec, nil
}

// ValidateAddress accepts a 0x-prefixed 40 hex character address. Mixed-case
// input must carry a valid EIP-55 checksum; all-lower and all-upper input is
// accepted as is.
func ValidateAddress(address string) (common.Address, error) {
	if address == "" {
		return common.Address{}, fmt.Errorf("address cannot be empty")
	}

	if err := validate.Var(address, "eth_addr"); err != nil {
		return common.Address{}, fmt.Errorf("address %q is not a valid hex address", address)
	}

	body := address[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		addr := common.HexToAddress(address)
		if addr.Hex() != address {
			return common.Address{}, fmt.Errorf("address %q has an invalid checksum", address)
		}
	}

	return common.HexToAddress(address), nil
}

// ParseAmountWithDecimals parses a positive decimal amount and converts it to
// base units. Amounts with more fractional digits than decimals are rejected
// rather than truncated.
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	if -dec.Exponent() > int32(decimals) {
		// trailing zeros do not count as precision
		if !dec.Equal(dec.Truncate(int32(decimals))) {
			return nil, fmt.Errorf("amount %s has more than %d decimals", amount, decimals)
		}
	}

	// Multiply by 10^decimals to get the raw integer amount
	multiplier := decimal.NewFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil), 0)
	result := dec.Mul(multiplier)

	return result.BigInt(), nil
}

// ParseEther converts an ether amount to wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseAmountWithDecimals(amount, EtherDecimals)
}

// FormatAmountFromBigInt formats a big.Int amount to decimal string with specified decimals
func FormatAmountFromBigInt(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	dec := decimal.NewFromBigInt(amount, -int32(decimals))
	return dec.String()
}

// FormatEther renders wei as an ether amount.
func FormatEther(wei *big.Int) string {
	return FormatAmountFromBigInt(wei, EtherDecimals)
}
