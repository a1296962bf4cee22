// Package models holds the JSON bodies exchanged over the HTTP API.
package models

import (
	"encoding/json"

	"github.com/planetqradio/creditledger/internal/domain"
)

// CreateUserRequest mirrors an identity into the ledger.
type CreateUserRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Role              string `json:"role"`
	MaxMonthlyCredits int64  `json:"maxMonthlyCredits"`
}

// AddCreditsRequest is the admin credit payload.
type AddCreditsRequest struct {
	TargetUserID int64 `json:"targetUserId"`
	Amount       int64 `json:"amount"`
}

// AddCreditsResponse is the canonical answer to a balance change.
type AddCreditsResponse struct {
	NewBalance  int64  `json:"newBalance"`
	DisplayName string `json:"displayName"`
}

// AdjustmentRequest is a signed admin correction.
type AdjustmentRequest struct {
	TargetUserID int64  `json:"targetUserId"`
	Amount       int64  `json:"amount"`
	Description  string `json:"description"`
}

type AdjustmentResponse struct {
	NewBalance  int64                 `json:"newBalance"`
	DisplayName string                `json:"displayName"`
	Entry       domain.CreditLogEntry `json:"entry"`
}

// SpendRequest debits the caller's own credits.
type SpendRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// GrantRewardRequest records a reward for the caller. Points may be fractional.
type GrantRewardRequest struct {
	Type        string          `json:"type,omitempty"`
	Points      float64         `json:"points"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// ListeningRequest reports listening time on one song.
type ListeningRequest struct {
	SongID          string  `json:"songId"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// RewardResponse wraps a stored reward record.
type RewardResponse struct {
	Reward domain.Reward `json:"reward"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
