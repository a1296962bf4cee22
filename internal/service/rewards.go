package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/planetqradio/creditledger/internal/auth"
	"github.com/planetqradio/creditledger/internal/domain"
	"github.com/planetqradio/creditledger/internal/withdrawal"
)

// GrantRequest asks for a reward. Points may be fractional; they are floored
// before storage.
type GrantRequest struct {
	UserID      int64
	Type        domain.RewardType
	Points      float64
	Description string
	Metadata    json.RawMessage
}

// RewardSummary is a user's reward position and what it is worth.
type RewardSummary struct {
	UserID      int64            `json:"userId"`
	TotalPoints int64            `json:"totalPoints"`
	Recent      []domain.Reward  `json:"recent"`
	Withdrawal  withdrawal.Quote `json:"withdrawal"`
}

// RewardService records engagement rewards. Rewards are a ledger of their own
// and never move the credit balance.
type RewardService struct {
	store           domain.LedgerStore
	log             *logrus.Logger
	pointsPerMinute float64
	recentLimit     int
}

func NewRewardService(store domain.LedgerStore, log *logrus.Logger, pointsPerMinute float64, recentLimit int) *RewardService {
	return &RewardService{
		store:           store,
		log:             log,
		pointsPerMinute: pointsPerMinute,
		recentLimit:     recentLimit,
	}
}

// Grant stores a reward for req.UserID, or for the caller when UserID is
// zero. Users may only reward themselves; admins may reward anyone.
func (s *RewardService) Grant(ctx context.Context, caller domain.Caller, req GrantRequest) (domain.Reward, error) {
	if err := auth.RequireAuthenticated(caller); err != nil {
		return domain.Reward{}, err
	}
	if req.UserID == 0 {
		req.UserID = caller.UserID
	}
	if err := auth.RequireSelfOrRole(caller, req.UserID, domain.RoleAdmin); err != nil {
		return domain.Reward{}, err
	}
	if req.Type == "" {
		req.Type = domain.RewardListening
	}

	points, err := floorPoints(req.Points)
	if err != nil {
		return domain.Reward{}, err
	}
	if !req.Type.Valid() {
		return domain.Reward{}, domain.Validationf("unknown reward type %q", req.Type)
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return domain.Reward{}, domain.Validationf("metadata must be valid JSON")
	}

	reward, err := s.store.InsertReward(ctx, domain.Reward{
		UserID:      req.UserID,
		Type:        req.Type,
		Points:      points,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return domain.Reward{}, storeError(s.log.WithField("user_id", req.UserID), "insert_reward", err)
	}

	rewardPointsGrantedTotal.WithLabelValues(string(reward.Type)).Add(float64(reward.Points))
	s.log.WithFields(logrus.Fields{
		"user_id":   reward.UserID,
		"caller_id": caller.UserID,
		"points":    reward.Points,
		"type":      reward.Type,
	}).Info("reward granted")
	return reward, nil
}

// floorPoints truncates toward negative infinity. Negative and non-finite
// values are rejected.
func floorPoints(p float64) (int64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, domain.Validationf("points must be a finite number")
	}
	if p < 0 {
		return 0, domain.Validationf("points must not be negative")
	}
	if p >= math.MaxInt64 {
		return 0, domain.Validationf("points out of range")
	}
	return int64(math.Floor(p)), nil
}

type listeningMetadata struct {
	SongID          string  `json:"songId"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// AccrueListening rewards the caller for time spent on a song at the
// configured per-minute rate.
func (s *RewardService) AccrueListening(ctx context.Context, caller domain.Caller, songID string, durationSeconds float64) (domain.Reward, error) {
	if err := auth.RequireAuthenticated(caller); err != nil {
		return domain.Reward{}, err
	}
	if songID == "" {
		return domain.Reward{}, domain.Validationf("songId is required")
	}
	if math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) || durationSeconds < 0 {
		return domain.Reward{}, domain.Validationf("durationSeconds must be a non-negative number")
	}

	metadata, err := json.Marshal(listeningMetadata{SongID: songID, DurationSeconds: durationSeconds})
	if err != nil {
		return domain.Reward{}, fmt.Errorf("encode listening metadata: %w", err)
	}
	return s.Grant(ctx, caller, GrantRequest{
		UserID:      caller.UserID,
		Type:        domain.RewardListening,
		Points:      durationSeconds / 60 * s.pointsPerMinute,
		Description: "Listened to song " + songID,
		Metadata:    metadata,
	})
}

// Summary totals the caller's rewards and quotes them for withdrawal.
func (s *RewardService) Summary(ctx context.Context, caller domain.Caller) (RewardSummary, error) {
	if err := auth.RequireAuthenticated(caller); err != nil {
		return RewardSummary{}, err
	}
	log := s.log.WithField("user_id", caller.UserID)

	total, err := s.store.RewardTotal(ctx, caller.UserID)
	if err != nil {
		return RewardSummary{}, storeError(log, "reward_total", err)
	}
	recent, err := s.store.ListRewards(ctx, caller.UserID, s.recentLimit)
	if err != nil {
		return RewardSummary{}, storeError(log, "list_rewards", err)
	}
	if recent == nil {
		recent = []domain.Reward{}
	}
	return RewardSummary{
		UserID:      caller.UserID,
		TotalPoints: total,
		Recent:      recent,
		Withdrawal:  withdrawal.Evaluate(total),
	}, nil
}
