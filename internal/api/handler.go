// Package api exposes the ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/planetqradio/creditledger/internal/auth"
	"github.com/planetqradio/creditledger/internal/domain"
	"github.com/planetqradio/creditledger/internal/models"
	"github.com/planetqradio/creditledger/internal/service"
)

const maxBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed JSON body")

type Handler struct {
	ledger  *service.LedgerService
	rewards *service.RewardService
	admin   *service.AdminService
	log     *logrus.Logger
}

func NewHandler(ledger *service.LedgerService, rewards *service.RewardService, admin *service.AdminService, log *logrus.Logger) *Handler {
	return &Handler{ledger: ledger, rewards: rewards, admin: admin, log: log}
}

// NewRouter wires every route. Requests under /api/v1 carry the caller
// resolved from their Bearer token.
func NewRouter(h *Handler, tokens *auth.TokenManager) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, instrumentMiddleware(h.log))

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(auth.Middleware(tokens, h.log))

	apiV1.HandleFunc("/admin/users", h.CreateUserHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/admin/credits", h.AddCreditsHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/admin/adjustments", h.AdjustHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/admin/users/{id:[0-9]+}/verify", h.VerifyHandler).Methods(http.MethodGet)

	apiV1.HandleFunc("/users/{id:[0-9]+}/balance", h.BalanceHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/users/{id:[0-9]+}/credits/log", h.CreditLogHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/credits/spend", h.SpendHandler).Methods(http.MethodPost)

	apiV1.HandleFunc("/rewards", h.GrantRewardHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/rewards/listening", h.ListeningHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/rewards", h.RewardSummaryHandler).Methods(http.MethodGet)

	apiV1.HandleFunc("/withdrawals/eligibility", h.EligibilityHandler).Methods(http.MethodGet)
	return r
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
}

// decodeJSON reads a bounded request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errMalformedBody
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errMalformedBody
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validationf("invalid user id")
	}
	return id, nil
}

// respondWithServiceError maps the domain error taxonomy onto HTTP statuses.
// Storage failures are already logged by the service; the body stays generic.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errMalformedBody):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrStorage):
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	default:
		h.log.WithError(err).Error("unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
