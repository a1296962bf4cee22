package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/planetqradio/creditledger/internal/auth"
	"github.com/planetqradio/creditledger/internal/domain"
)

// CreditResult is returned by every balance-changing operation.
type CreditResult struct {
	NewBalance  int64                 `json:"newBalance"`
	DisplayName string                `json:"displayName"`
	Entry       domain.CreditLogEntry `json:"entry"`
}

// BalanceView is a user's credit position.
type BalanceView struct {
	UserID            int64  `json:"userId"`
	DisplayName       string `json:"displayName"`
	Credits           int64  `json:"credits"`
	MaxMonthlyCredits int64  `json:"maxMonthlyCredits"`
	TotalCreditsUsed  int64  `json:"totalCreditsUsed"`
}

// Verification compares the live balance with the sum of the credit log.
type Verification struct {
	UserID     int64 `json:"userId"`
	Balance    int64 `json:"balance"`
	LedgerSum  int64 `json:"ledgerSum"`
	Entries    int64 `json:"entries"`
	Consistent bool  `json:"consistent"`
}

// LedgerService owns the credit balance. Every change goes through the store
// as a single transaction that updates the balance and appends one log entry.
type LedgerService struct {
	store        domain.LedgerStore
	log          *logrus.Logger
	historyLimit int
}

func NewLedgerService(store domain.LedgerStore, log *logrus.Logger, historyLimit int) *LedgerService {
	return &LedgerService{store: store, log: log, historyLimit: historyLimit}
}

// Credit adds a positive amount to the user's balance.
func (s *LedgerService) Credit(ctx context.Context, userID, amount int64, description string) (CreditResult, error) {
	if amount <= 0 {
		return CreditResult{}, domain.Validationf("amount must be a positive integer")
	}
	return s.apply(ctx, domain.CreditChange{
		UserID:      userID,
		Amount:      amount,
		Kind:        domain.CreditGrant,
		Description: description,
	})
}

// Spend debits the caller's own balance for a paid action such as a song generation.
func (s *LedgerService) Spend(ctx context.Context, caller domain.Caller, amount int64, description string) (CreditResult, error) {
	if err := auth.RequireAuthenticated(caller); err != nil {
		return CreditResult{}, err
	}
	if amount <= 0 {
		return CreditResult{}, domain.Validationf("amount must be a positive integer")
	}
	if description == "" {
		description = "Credit usage"
	}
	return s.apply(ctx, domain.CreditChange{
		UserID:      caller.UserID,
		Amount:      -amount,
		Kind:        domain.CreditUsage,
		Description: description,
	})
}

func (s *LedgerService) apply(ctx context.Context, change domain.CreditChange) (CreditResult, error) {
	log := s.log.WithFields(logrus.Fields{
		"user_id": change.UserID,
		"amount":  change.Amount,
		"kind":    change.Kind,
	})

	if change.UserID <= 0 {
		err := domain.Validationf("user id is required")
		creditOperationsTotal.WithLabelValues(string(change.Kind), resultLabel(err)).Inc()
		return CreditResult{}, err
	}

	entry, user, err := s.store.ApplyCredit(ctx, change)
	if err != nil {
		err = storeError(log, "apply_credit", err)
		creditOperationsTotal.WithLabelValues(string(change.Kind), resultLabel(err)).Inc()
		return CreditResult{}, err
	}
	creditOperationsTotal.WithLabelValues(string(change.Kind), resultLabel(nil)).Inc()

	log.WithFields(logrus.Fields{
		"entry_id":      entry.ID,
		"balance_after": entry.BalanceAfter,
	}).Info("credit balance changed")

	return CreditResult{
		NewBalance:  user.Credits,
		DisplayName: user.Name,
		Entry:       entry,
	}, nil
}

// Balance returns the user's credits. Callers may read their own balance;
// admins may read anyone's.
func (s *LedgerService) Balance(ctx context.Context, caller domain.Caller, userID int64) (BalanceView, error) {
	if err := auth.RequireSelfOrRole(caller, userID, domain.RoleAdmin); err != nil {
		return BalanceView{}, err
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return BalanceView{}, storeError(s.log, "get_user", err)
	}
	return BalanceView{
		UserID:            u.ID,
		DisplayName:       u.Name,
		Credits:           u.Credits,
		MaxMonthlyCredits: u.MaxMonthlyCredits,
		TotalCreditsUsed:  u.TotalCreditsUsed,
	}, nil
}

// History lists the user's credit log newest first. limit is clamped to the
// configured maximum; zero or negative means the maximum.
func (s *LedgerService) History(ctx context.Context, caller domain.Caller, userID int64, limit int) ([]domain.CreditLogEntry, error) {
	if err := auth.RequireSelfOrRole(caller, userID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, storeError(s.log, "get_user", err)
	}
	entries, err := s.store.CreditLog(ctx, userID, limit)
	if err != nil {
		return nil, storeError(s.log, "credit_log", err)
	}
	if entries == nil {
		entries = []domain.CreditLogEntry{}
	}
	return entries, nil
}

// Verify recomputes the ledger sum for a user and compares it with the live
// balance. It reports; it never repairs.
func (s *LedgerService) Verify(ctx context.Context, caller domain.Caller, userID int64) (Verification, error) {
	if err := auth.RequireRole(caller, domain.RoleAdmin); err != nil {
		return Verification{}, err
	}
	totals, err := s.store.LedgerTotals(ctx, userID)
	if err != nil {
		return Verification{}, storeError(s.log, "ledger_totals", err)
	}

	v := Verification{
		UserID:     userID,
		Balance:    totals.Balance,
		LedgerSum:  totals.LedgerSum,
		Entries:    totals.Entries,
		Consistent: totals.LedgerSum == totals.Balance,
	}
	if !v.Consistent {
		s.log.WithFields(logrus.Fields{
			"user_id":    userID,
			"balance":    v.Balance,
			"ledger_sum": v.LedgerSum,
		}).Warn("credit balance does not match ledger")
	}
	return v, nil
}
