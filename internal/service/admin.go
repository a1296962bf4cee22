package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/planetqradio/creditledger/internal/auth"
	"github.com/planetqradio/creditledger/internal/domain"
)

const defaultGrantDescription = "Admin credit grant"

// NewUser is the identity an admin mirrors into the ledger.
type NewUser struct {
	Name              string
	Email             string
	Role              domain.Role
	MaxMonthlyCredits int64
}

// AdminService is the privileged surface. Each method checks the caller's
// role before it reads or writes anything.
type AdminService struct {
	store  domain.LedgerStore
	ledger *LedgerService
	log    *logrus.Logger
}

func NewAdminService(store domain.LedgerStore, ledger *LedgerService, log *logrus.Logger) *AdminService {
	return &AdminService{store: store, ledger: ledger, log: log}
}

// AddCredits grants a positive amount to targetUserID.
func (s *AdminService) AddCredits(ctx context.Context, caller domain.Caller, targetUserID, amount int64) (CreditResult, error) {
	if err := s.authorize(caller, "add_credits"); err != nil {
		return CreditResult{}, err
	}
	return s.ledger.Credit(ctx, targetUserID, amount, defaultGrantDescription)
}

// Adjust applies a signed correction. A negative amount debits; the balance
// may not go below zero.
func (s *AdminService) Adjust(ctx context.Context, caller domain.Caller, targetUserID, amount int64, description string) (CreditResult, error) {
	if err := s.authorize(caller, "adjust"); err != nil {
		return CreditResult{}, err
	}
	if amount == 0 {
		return CreditResult{}, domain.Validationf("amount must not be zero")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return CreditResult{}, domain.Validationf("description is required for adjustments")
	}
	return s.ledger.apply(ctx, domain.CreditChange{
		UserID:      targetUserID,
		Amount:      amount,
		Kind:        domain.CreditAdjustment,
		Description: description,
	})
}

// ProvisionUser mirrors an identity from the auth provider so it can hold
// credits and rewards.
func (s *AdminService) ProvisionUser(ctx context.Context, caller domain.Caller, nu NewUser) (domain.User, error) {
	if err := s.authorize(caller, "provision_user"); err != nil {
		return domain.User{}, err
	}

	nu.Name = strings.TrimSpace(nu.Name)
	if nu.Name == "" {
		return domain.User{}, domain.Validationf("name is required")
	}
	addr, err := mail.ParseAddress(nu.Email)
	if err != nil {
		return domain.User{}, domain.Validationf("invalid email %q", nu.Email)
	}
	if nu.Role == "" {
		nu.Role = domain.RoleUser
	}
	if !nu.Role.Valid() {
		return domain.User{}, domain.Validationf("unknown role %q", nu.Role)
	}
	if nu.MaxMonthlyCredits < 0 {
		return domain.User{}, domain.Validationf("maxMonthlyCredits must not be negative")
	}

	u, err := s.store.CreateUser(ctx, domain.User{
		Name:              nu.Name,
		Email:             strings.ToLower(addr.Address),
		Role:              nu.Role,
		MaxMonthlyCredits: nu.MaxMonthlyCredits,
	})
	if err != nil {
		return domain.User{}, storeError(s.log.WithField("email", nu.Email), "create_user", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "caller_id": caller.UserID, "role": u.Role}).Info("user provisioned")
	return u, nil
}

func (s *AdminService) authorize(caller domain.Caller, op string) error {
	if err := auth.RequireRole(caller, domain.RoleAdmin); err != nil {
		s.log.WithFields(logrus.Fields{"caller_id": caller.UserID, "op": op}).Warn("admin operation rejected")
		return err
	}
	return nil
}
