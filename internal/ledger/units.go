package ledger

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "CircleLayer-Assistant/internal/errors"
)

const (
	EtherDecimals = 18
	GweiDecimals  = 9
)

// ParseUnits converts a decimal string into an integer amount scaled by
// 10^decimals. More fractional digits than decimals is an error.
func ParseUnits(value string, decimals int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, xerrors.New(xerrors.CodeValidationFailed, "amount is empty")
	}
	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, xerrors.New(xerrors.CodeValidationFailed, fmt.Sprintf("invalid amount %q", value))
	}
	if len(frac) > decimals {
		return nil, xerrors.New(xerrors.CodeValidationFailed, fmt.Sprintf("amount %q has more than %d decimals", value, decimals))
	}
	frac += strings.Repeat("0", decimals-len(frac))
	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, xerrors.New(xerrors.CodeValidationFailed, fmt.Sprintf("invalid amount %q", value))
	}
	return out, nil
}

// ParseEther converts a CLAYER amount into wei.
func ParseEther(amount float64) (*big.Int, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, xerrors.New(xerrors.CodeValidationFailed, fmt.Sprintf("invalid amount %v", amount))
	}
	return ParseUnits(strconv.FormatFloat(amount, 'f', -1, 64), EtherDecimals)
}

// FormatUnits renders an integer amount scaled by 10^decimals as a decimal
// string with at least one fractional digit, e.g. "1.0" or "0.000021".
func FormatUnits(value *big.Int, decimals int) string {
	if value == nil {
		return "0.0"
	}
	abs := new(big.Int).Abs(value)
	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, rem := new(big.Int).QuoRem(abs, base, new(big.Int))

	frac := rem.String()
	if len(frac) < decimals {
		frac = strings.Repeat("0", decimals-len(frac)) + frac
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		frac = "0"
	}

	sign := ""
	if value.Sign() < 0 {
		sign = "-"
	}
	return sign + whole.String() + "." + frac
}

// FormatEther renders wei as decimal CLAYER.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}

// FormatGwei renders wei as decimal gwei.
func FormatGwei(wei *big.Int) string {
	return FormatUnits(wei, GweiDecimals)
}

// ValidateAddress reports whether s is 0x followed by 40 hex characters.
// Checksums are not verified.
func ValidateAddress(s string) bool {
	if len(s) != 2+2*common.AddressLength {
		return false
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	return common.IsHexAddress(s)
}

// FormatAddress shortens an address to 0x1234...abcd.
func FormatAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
