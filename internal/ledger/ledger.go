// Package ledger wraps the value-transfer interface of the chain. The
// gateway only issues two calls against it: a bank transfer during a reward
// purchase and a balance read for the persona dashboard. Everything else
// about the chain (consensus, finality, fee handling) is the transaction
// gateway's concern.
package ledger

import (
	"context"
	"fmt"
	"strings"

	id "persona-gateway/pkg/domain"
)

// MicroUnitsPerToken is the conversion between display units and the
// ledger's smallest integer unit (1 token = 1,000,000 micro units).
const MicroUnitsPerToken = 1_000_000

const microDecimals = 6

// TxResult is the broadcast outcome of a transfer. Code zero means the
// chain accepted the transaction; anything else is a rejection and RawLog
// carries the reason.
type TxResult struct {
	Code   uint32
	RawLog string
	TxHash string
}

// Ledger is the value-transfer contract consumed by the reward unlock
// coordinator and the persona read path.
type Ledger interface {
	// Transfer moves amount micro units of denom from one account to
	// another. A returned error or a non-zero TxResult.Code both mean the
	// transfer did not happen.
	Transfer(ctx context.Context, from, to id.AccountID, amount int64, denom string) (TxResult, error)

	// Balance reports the spendable balance of account in micro units.
	Balance(ctx context.Context, account id.AccountID, denom string) (int64, error)
}

// ParseDisplayAmount converts a decimal display-unit string ("5", "0.25",
// "1.5") to micro units, truncating anything beyond six decimal places.
// String arithmetic throughout: a price never goes through a float.
func ParseDisplayAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > microDecimals {
		frac = frac[:microDecimals]
	}
	frac += strings.Repeat("0", microDecimals-len(frac))

	var micro int64
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("amount %q: not a decimal number", s)
		}
		d := int64(r - '0')
		if micro > (1<<63-1-d)/10 {
			return 0, fmt.Errorf("amount %q: overflows", s)
		}
		micro = micro*10 + d
	}
	return micro, nil
}

// IsInsufficientFunds classifies a transfer rejection as a funding
// shortfall by inspecting the broadcast log. The caller routes this case to
// the funding flow instead of a generic failure screen.
func IsInsufficientFunds(rawLog string) bool {
	return strings.Contains(strings.ToLower(rawLog), "insufficient funds")
}
