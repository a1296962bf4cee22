package domain

import (
	"encoding/json"
	"time"
)

// Role is the privilege level the identity provider assigns to a caller.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Caller is the session identity supplied by the auth provider.
// The zero value is an unauthenticated caller.
type Caller struct {
	UserID int64 `json:"userId"`
	Role   Role  `json:"role"`
}

// Authenticated reports whether the caller carries a session.
func (c Caller) Authenticated() bool {
	return c.UserID > 0 && c.Role.Valid()
}

// User mirrors an identity from the auth provider. The ledger only mutates
// Credits and TotalCreditsUsed.
type User struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Role              Role      `json:"role"`
	Credits           int64     `json:"credits"`
	MaxMonthlyCredits int64     `json:"maxMonthlyCredits"`
	TotalCreditsUsed  int64     `json:"totalCreditsUsed"`
	CreatedAt         time.Time `json:"createdAt"`
}

// CreditKind records why a credit balance changed.
type CreditKind string

const (
	CreditGrant      CreditKind = "grant"
	CreditAdjustment CreditKind = "adjustment"
	CreditUsage      CreditKind = "usage"
)

// Valid reports whether k is a known credit kind.
func (k CreditKind) Valid() bool {
	switch k {
	case CreditGrant, CreditAdjustment, CreditUsage:
		return true
	}
	return false
}

// CreditLogEntry is one immutable balance-changing event.
// Summing Amount over a user's entries in ID order yields the live balance.
type CreditLogEntry struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	Amount       int64      `json:"amount"`
	BalanceAfter int64      `json:"balanceAfter"`
	Kind         CreditKind `json:"kind"`
	Description  string     `json:"description"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// LedgerTotals is a user's balance next to the sum and count of their credit log.
type LedgerTotals struct {
	Balance   int64
	LedgerSum int64
	Entries   int64
}

// CreditChange is a request to move a user's balance by a signed Amount.
type CreditChange struct {
	UserID      int64
	Amount      int64
	Kind        CreditKind
	Description string
}

// RewardType classifies an engagement reward.
type RewardType string

const (
	RewardListening RewardType = "listening"
)

// Valid reports whether t is a known reward type.
func (t RewardType) Valid() bool {
	return t == RewardListening
}

// Reward is an immutable engagement grant. Rewards form their own ledger and
// never touch User.Credits.
type Reward struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	Type        RewardType      `json:"type"`
	Points      int64           `json:"points"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
