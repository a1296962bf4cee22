package domain

import "context"

// LedgerStore is the persistent store behind the ledger. Implementations must
// apply each CreditChange as one transaction: lock the user row, update the
// balance and append exactly one CreditLogEntry, or change nothing.
type LedgerStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)

	// ApplyCredit returns ErrNotFound for an unknown user and
	// ErrInsufficientCredits when the balance would drop below zero.
	ApplyCredit(ctx context.Context, change CreditChange) (CreditLogEntry, User, error)
	// CreditLog lists entries newest first. limit <= 0 means all.
	CreditLog(ctx context.Context, userID int64, limit int) ([]CreditLogEntry, error)
	// LedgerTotals reads the balance and the credit log aggregate in a single
	// statement, so a concurrent ApplyCredit is either fully in it or not at all.
	LedgerTotals(ctx context.Context, userID int64) (LedgerTotals, error)

	InsertReward(ctx context.Context, r Reward) (Reward, error)
	ListRewards(ctx context.Context, userID int64, limit int) ([]Reward, error)
	RewardTotal(ctx context.Context, userID int64) (int64, error)

	Close() error
}
