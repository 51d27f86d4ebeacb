// Package settlement splits a completed order's locked price between the
// platform and the interpreter and records the interpreter's earning.
package settlement

import (
	"errors"

	"github.com/shopspring/decimal"
	settingsdomain "github.com/smallbiznis/dreamline/internal/settings/domain"
)

var (
	ErrMissingLockedPrice = errors.New("missing_locked_price")
	ErrNotAssigned        = errors.New("order_not_assigned")
	ErrInvalidPrice       = errors.New("invalid_locked_price")
)

// Split is the division of a locked price. The two parts always sum to the
// locked price.
type Split struct {
	PlatformCommission int64 `json:"platform_commission"`
	InterpreterEarning int64 `json:"interpreter_earning"`
}

// Compute rounds the commission half-up to whole minor units and gives the
// remainder to the interpreter.
func Compute(lockedPrice int64, rate decimal.Decimal) (Split, error) {
	if lockedPrice < 0 {
		return Split{}, ErrInvalidPrice
	}
	if err := settingsdomain.ValidateRate(rate); err != nil {
		return Split{}, err
	}

	commission := decimal.NewFromInt(lockedPrice).Mul(rate).Round(0).IntPart()
	return Split{
		PlatformCommission: commission,
		InterpreterEarning: lockedPrice - commission,
	}, nil
}

// Result is a settlement outcome. Applied is false when the order had already
// been settled and the stored values were returned.
type Result struct {
	Split
	Rate            decimal.Decimal
	SettingsVersion int64
	Currency        string
	Applied         bool
}
