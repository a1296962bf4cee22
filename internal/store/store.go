// Package store persists users, the credit log and rewards. Two backends
// implement domain.LedgerStore: Postgres for production and an embedded
// SQLite file for local runs, the admin CLI and tests.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/planetqradio/creditledger/internal/config"
	"github.com/planetqradio/creditledger/internal/domain"
)

// Open builds the store selected by cfg.StoreDriver. The caller owns the
// returned handle and must Close it.
func Open(ctx context.Context, cfg *config.Config, log *logrus.Logger) (domain.LedgerStore, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err := NewPostgresStore(ctx, cfg.DBSource, PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			return nil, err
		}
		log.WithField("driver", cfg.StoreDriver).Info("ledger store ready")
		return s, nil
	case config.DriverSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"driver": cfg.StoreDriver, "path": cfg.SQLitePath}).Info("ledger store ready")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// usageDelta is how much a change adds to User.TotalCreditsUsed.
func usageDelta(change domain.CreditChange) int64 {
	if change.Kind == domain.CreditUsage && change.Amount < 0 {
		return -change.Amount
	}
	return 0
}

// overflows reports whether balance+amount would wrap past MaxInt64.
func overflows(balance, amount int64) bool {
	return amount > 0 && balance > math.MaxInt64-amount
}

func normalizeMetadata(m json.RawMessage) json.RawMessage {
	if len(m) == 0 || string(m) == "null" {
		return json.RawMessage(`{}`)
	}
	return m
}
