package api

import (
	"net/http"
	"strconv"

	"github.com/planetqradio/creditledger/internal/auth"
	"github.com/planetqradio/creditledger/internal/domain"
	"github.com/planetqradio/creditledger/internal/models"
	"github.com/planetqradio/creditledger/internal/service"
	"github.com/planetqradio/creditledger/internal/withdrawal"
)

func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	u, err := h.admin.ProvisionUser(r.Context(), auth.CallerFrom(r.Context()), service.NewUser{
		Name:              req.Name,
		Email:             req.Email,
		Role:              domain.Role(req.Role),
		MaxMonthlyCredits: req.MaxMonthlyCredits,
	})
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/users/"+strconv.FormatInt(u.ID, 10)+"/balance")
	respondWithJSON(w, http.StatusCreated, u)
}

func (h *Handler) AddCreditsHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AddCreditsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	res, err := h.admin.AddCredits(r.Context(), auth.CallerFrom(r.Context()), req.TargetUserID, req.Amount)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.AddCreditsResponse{
		NewBalance:  res.NewBalance,
		DisplayName: res.DisplayName,
	})
}

func (h *Handler) AdjustHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	res, err := h.admin.Adjust(r.Context(), auth.CallerFrom(r.Context()), req.TargetUserID, req.Amount, req.Description)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.AdjustmentResponse{
		NewBalance:  res.NewBalance,
		DisplayName: res.DisplayName,
		Entry:       res.Entry,
	})
}

func (h *Handler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	v, err := h.ledger.Verify(r.Context(), auth.CallerFrom(r.Context()), id)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, v)
}

func (h *Handler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	bal, err := h.ledger.Balance(r.Context(), auth.CallerFrom(r.Context()), id)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, bal)
}

func (h *Handler) CreditLogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.respondWithServiceError(w, domain.Validationf("limit must be a non-negative integer"))
			return
		}
	}

	entries, err := h.ledger.History(r.Context(), auth.CallerFrom(r.Context()), id, limit)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *Handler) SpendHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SpendRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	res, err := h.ledger.Spend(r.Context(), auth.CallerFrom(r.Context()), req.Amount, req.Description)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.AddCreditsResponse{
		NewBalance:  res.NewBalance,
		DisplayName: res.DisplayName,
	})
}

func (h *Handler) GrantRewardHandler(w http.ResponseWriter, r *http.Request) {
	var req models.GrantRewardRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	reward, err := h.rewards.Grant(r.Context(), auth.CallerFrom(r.Context()), service.GrantRequest{
		Type:        domain.RewardType(req.Type),
		Points:      req.Points,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.RewardResponse{Reward: reward})
}

func (h *Handler) ListeningHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ListeningRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	reward, err := h.rewards.AccrueListening(r.Context(), auth.CallerFrom(r.Context()), req.SongID, req.DurationSeconds)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, models.RewardResponse{Reward: reward})
}

func (h *Handler) RewardSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.rewards.Summary(r.Context(), auth.CallerFrom(r.Context()))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// EligibilityHandler is a pure calculation and needs no session.
func (h *Handler) EligibilityHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("points")
	if raw == "" {
		h.respondWithServiceError(w, domain.Validationf("points is required"))
		return
	}
	points, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.respondWithServiceError(w, domain.Validationf("points must be an integer"))
		return
	}
	respondWithJSON(w, http.StatusOK, withdrawal.Evaluate(points))
}
