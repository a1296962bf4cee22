package service

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/planetqradio/creditledger/internal/domain"
)

// storeError passes caller-facing store errors through unchanged and turns
// anything else into a generic ErrStorage after logging the detail.
func storeError(log logrus.FieldLogger, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	log.WithError(err).WithField("op", op).Error("ledger store failure")
	return domain.Storage(err)
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientCredits):
		return "insufficient"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
