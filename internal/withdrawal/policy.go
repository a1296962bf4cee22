// Package withdrawal decides when reward points can be cashed out and what
// they are worth. Everything here is pure; no ledger is touched.
package withdrawal

import "github.com/shopspring/decimal"

const (
	// MinimumPoints is the smallest withdrawable balance: 100 points = $1.00.
	MinimumPoints int64 = 100
	// CentsPerPoint is the fixed point-to-currency rate.
	CentsPerPoint int64 = 1
)

// Quote is the eligibility answer returned to the API layer.
type Quote struct {
	Points              int64  `json:"points"`
	Eligible            bool   `json:"eligible"`
	WithdrawableAmount  int64  `json:"withdrawableAmount"`
	DollarValue         string `json:"dollarValue"`
	WithdrawableDollars string `json:"withdrawableDollars"`
	Remainder           int64  `json:"remainder"`
}

// CanWithdraw reports whether points reach the minimum threshold.
func CanWithdraw(points int64) bool {
	return points >= MinimumPoints
}

// WithdrawableAmount returns the largest multiple of MinimumPoints not above
// points. Partial thresholds stay for the next cycle.
func WithdrawableAmount(points int64) int64 {
	if !CanWithdraw(points) {
		return 0
	}
	return points / MinimumPoints * MinimumPoints
}

// PointsToDollars formats points at the fixed rate with two decimals.
func PointsToDollars(points int64) string {
	return decimal.New(points*CentsPerPoint, -2).StringFixed(2)
}

// Evaluate builds a Quote for points. DollarValue converts every point;
// WithdrawableDollars converts only the part that can be paid out now.
func Evaluate(points int64) Quote {
	amount := WithdrawableAmount(points)
	remainder := points - amount
	if remainder < 0 {
		remainder = 0
	}
	return Quote{
		Points:              points,
		Eligible:            CanWithdraw(points),
		WithdrawableAmount:  amount,
		DollarValue:         PointsToDollars(points),
		WithdrawableDollars: PointsToDollars(amount),
		Remainder:           remainder,
	}
}
