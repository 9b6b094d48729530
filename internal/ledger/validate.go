package ledger

import (
	"context"
	"fmt"
	"strconv"
)

// TransferCheck is the outcome of a pre-flight check on a transfer.
type TransferCheck struct {
	ValidAddress  bool         `json:"valid_address"`
	EnoughBalance bool         `json:"enough_balance"`
	CanAffordGas  bool         `json:"can_afford_gas"`
	Balance       float64      `json:"balance"`
	GasEstimate   *GasEstimate `json:"gas_estimate,omitempty"`
	Problems      []string     `json:"problems,omitempty"`
}

// OK reports whether the transfer passed every check.
func (t TransferCheck) OK() bool {
	return t.ValidAddress && t.EnoughBalance && t.CanAffordGas && len(t.Problems) == 0
}

// ValidateTransfer checks the recipient format, the wallet balance and
// whether the balance also covers the estimated gas. It never returns an
// error; failures are listed in Problems.
func ValidateTransfer(ctx context.Context, c Client, to string, amount float64) TransferCheck {
	check := TransferCheck{ValidAddress: c.ValidateAddress(to)}
	if !check.ValidAddress {
		check.Problems = append(check.Problems, "Invalid recipient address")
		return check
	}

	bal, err := c.Balance(ctx, "")
	if err != nil {
		check.Problems = append(check.Problems, "Transaction validation failed: "+err.Error())
		return check
	}
	balance, err := strconv.ParseFloat(bal.Balance, 64)
	if err != nil {
		check.Problems = append(check.Problems, fmt.Sprintf("Transaction validation failed: unreadable balance %q", bal.Balance))
		return check
	}
	check.Balance = balance

	if balance < amount {
		check.Problems = append(check.Problems, fmt.Sprintf("Insufficient balance. You have %.4f CLAYER but trying to send %v CLAYER", balance, amount))
	} else {
		check.EnoughBalance = true
	}

	estimate, err := c.EstimateGas(ctx, to, amount)
	if err != nil {
		check.Problems = append(check.Problems, "Could not estimate gas fees")
		return check
	}
	check.GasEstimate = &estimate

	cost, _ := strconv.ParseFloat(estimate.TotalCost, 64)
	total := amount + cost
	if balance >= total {
		check.CanAffordGas = true
	} else {
		check.Problems = append(check.Problems, fmt.Sprintf("Insufficient balance for gas. Total cost: %.6f CLAYER", total))
	}
	return check
}
