package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetqradio/creditledger/internal/config"
	"github.com/planetqradio/creditledger/internal/domain"
	"github.com/planetqradio/creditledger/internal/logging"
)

func newTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) domain.LedgerStore { return newTestDB(t) })
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{StoreDriver: "mongo"}
	_, err := Open(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestOpenSQLiteDriver(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")}
	s, err := Open(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*SQLiteStore)
	assert.True(t, ok)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	u, err := s.CreateUser(ctx, domain.User{Name: "Ada", Email: "ada@planetq.fm", Role: domain.RoleUser})
	require.NoError(t, err)
	_, _, err = s.ApplyCredit(ctx, domain.CreditChange{UserID: u.ID, Amount: 40, Kind: domain.CreditGrant})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.Credits)
}

func TestSQLiteLogIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	u, err := s.CreateUser(ctx, domain.User{Name: "Ada", Email: "ada@planetq.fm", Role: domain.RoleUser})
	require.NoError(t, err)
	_, _, err = s.ApplyCredit(ctx, domain.CreditChange{UserID: u.ID, Amount: 10, Kind: domain.CreditGrant})
	require.NoError(t, err)
	_, err = s.InsertReward(ctx, domain.Reward{UserID: u.ID, Type: domain.RewardListening, Points: 3})
	require.NoError(t, err)

	for _, stmt := range []string{
		`UPDATE credit_logs SET amount = 1000`,
		`DELETE FROM credit_logs`,
		`UPDATE rewards SET points = 1000`,
		`DELETE FROM rewards`,
	} {
		_, err := s.db.ExecContext(ctx, stmt)
		assert.Error(t, err, stmt)
	}
}

func TestUsageDelta(t *testing.T) {
	assert.Equal(t, int64(5), usageDelta(domain.CreditChange{Kind: domain.CreditUsage, Amount: -5}))
	assert.Equal(t, int64(0), usageDelta(domain.CreditChange{Kind: domain.CreditAdjustment, Amount: -5}))
	assert.Equal(t, int64(0), usageDelta(domain.CreditChange{Kind: domain.CreditGrant, Amount: 5}))
}

// runStoreContract exercises behaviour every LedgerStore must share.
func runStoreContract(t *testing.T, open func(t *testing.T) domain.LedgerStore) {
	ctx := context.Background()

	newUser := func(t *testing.T, s domain.LedgerStore, email string) domain.User {
		t.Helper()
		u, err := s.CreateUser(ctx, domain.User{Name: "Listener", Email: email, Role: domain.RoleUser, MaxMonthlyCredits: 500})
		require.NoError(t, err)
		return u
	}

	t.Run("create and get user", func(t *testing.T) {
		s := open(t)
		u := newUser(t, s, "a@planetq.fm")
		assert.NotZero(t, u.ID)
		assert.Zero(t, u.Credits)

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, got.Email)
		assert.Equal(t, domain.RoleUser, got.Role)
		assert.Equal(t, int64(500), got.MaxMonthlyCredits)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("duplicate email", func(t *testing.T) {
		s := open(t)
		newUser(t, s, "dup@planetq.fm")
		_, err := s.CreateUser(ctx, domain.User{Name: "Again", Email: "dup@planetq.fm", Role: domain.RoleUser})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("unknown user", func(t *testing.T) {
		s := open(t)
		_, err := s.GetUser(ctx, 9999)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, _, err = s.ApplyCredit(ctx, domain.CreditChange{UserID: 9999, Amount: 5, Kind: domain.CreditGrant})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = s.LedgerTotals(ctx, 9999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("apply credit appends one entry", func(t *testing.T) {
		s := open(t)
		u := newUser(t, s, "c@planetq.fm")

		entry, updated, err := s.ApplyCredit(ctx, domain.CreditChange{UserID: u.ID, Amount: 50, Kind: domain.CreditGrant, Description: "welcome"})
		require.NoError(t, err)
		assert.Equal(t, int64(50), updated.Credits)
		assert.Equal(t, int64(50), entry.BalanceAfter)
		assert.Equal(t, domain.CreditGrant, entry.Kind)
		assert.Equal(t, "welcome", entry.Description)

		_, updated, err = s.ApplyCredit(ctx, domain.CreditChange{UserID: u.ID, Amount: -20, Kind: domain.CreditUsage})
		require.NoError(t, err)
		assert.Equal(t, int64(30), updated.Credits)
		assert.Equal(t, int64(20), updated.TotalCreditsUsed)

		log, err := s.CreditLog(ctx, u.ID, 0)
		require.NoError(t, err)
		require.Len(t, log, 2)
		assert.Equal(t, int64(-20), log[0].Amount, "newest first")
		assert.Equal(t, int64(50), log[1].Amount)

		limited, err := s.CreditLog(ctx, u.ID, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("insufficient credits changes nothing", func(t *testing.T) {
		s := open(t)
		u := newUser(t, s, "d@planetq.fm")
		_, _, err := s.ApplyCredit(ctx, domain.CreditChange{UserID: u.ID, Amount: 10, Kind: domain.CreditGrant})
		require.NoError(t, err)

		_, _, err = s.ApplyCredit(ctx, domain.CreditChange{UserID: u.ID, Amount: -11, Kind: domain.CreditUsage})
		assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), got.Credits)
		assert.Zero(t, got.TotalCreditsUsed)
		log, err := s.CreditLog(ctx, u.ID, 0)
		require.NoError(t, err)
		assert.Len(t, log, 1)
	})

	t.Run("overflowing credit is rejected", func(t *testing.T) {
		s := open(t)
		u := newUser(t, s, "o@planetq.fm")
		_, _, err := s.ApplyCredit(ctx, domain.CreditChange{UserID: u.ID, Amount: 10, Kind: domain.CreditGrant})
		require.NoError(t, err)

		_, _, err = s.ApplyCredit(ctx, domain.CreditChange{UserID: u.ID, Amount: math.MaxInt64, Kind: domain.CreditGrant})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.NotErrorIs(t, err, domain.ErrInsufficientCredits)

		totals, err := s.LedgerTotals(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LedgerTotals{Balance: 10, LedgerSum: 10, Entries: 1}, totals)
	})

	t.Run("concurrent credits lose nothing", func(t *testing.T) {
		s := open(t)
		u := newUser(t, s, "e@planetq.fm")

		const workers, per = 8, 10
		var wg sync.WaitGroup
		errs := make(chan error, workers*per)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < per; i++ {
					_, _, err := s.ApplyCredit(ctx, domain.CreditChange{
						UserID:      u.ID,
						Amount:      int64(w + 1),
						Kind:        domain.CreditGrant,
						Description: fmt.Sprintf("worker %d #%d", w, i),
					})
					if err != nil {
						errs <- err
					}
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("apply credit: %v", err)
		}

		var want int64
		for w := 1; w <= workers; w++ {
			want += int64(w * per)
		}
		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got.Credits)

		totals, err := s.LedgerTotals(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, want, totals.LedgerSum)
		assert.Equal(t, want, totals.Balance)
		assert.Equal(t, int64(workers*per), totals.Entries)

		log, err := s.CreditLog(ctx, u.ID, 0)
		require.NoError(t, err)
		assert.Len(t, log, workers*per)
		// Each entry's running balance must match the prefix sum in ID order.
		var running int64
		for i := len(log) - 1; i >= 0; i-- {
			running += log[i].Amount
			assert.Equal(t, running, log[i].BalanceAfter)
		}
	})

	t.Run("totals agree while credits land", func(t *testing.T) {
		s := open(t)
		u := newUser(t, s, "t@planetq.fm")

		const writers, per = 4, 20
		var wg sync.WaitGroup
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < per; i++ {
					_, _, err := s.ApplyCredit(ctx, domain.CreditChange{UserID: u.ID, Amount: 1, Kind: domain.CreditGrant})
					assert.NoError(t, err)
				}
			}()
		}
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		for running := true; running; {
			select {
			case <-done:
				running = false
			default:
			}
			totals, err := s.LedgerTotals(ctx, u.ID)
			require.NoError(t, err)
			require.Equal(t, totals.Balance, totals.LedgerSum)
			require.Equal(t, totals.Balance, totals.Entries)
		}
	})

	t.Run("rewards", func(t *testing.T) {
		s := open(t)
		u := newUser(t, s, "f@planetq.fm")

		r, err := s.InsertReward(ctx, domain.Reward{
			UserID:      u.ID,
			Type:        domain.RewardListening,
			Points:      7,
			Description: "Listened to song",
			Metadata:    json.RawMessage(`{"songId":"s1","durationSeconds":420}`),
		})
		require.NoError(t, err)
		assert.NotZero(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())

		_, err = s.InsertReward(ctx, domain.Reward{UserID: u.ID, Type: domain.RewardListening, Points: 3})
		require.NoError(t, err)

		list, err := s.ListRewards(ctx, u.ID, 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, int64(3), list[0].Points)
		assert.JSONEq(t, `{}`, string(list[0].Metadata))
		assert.JSONEq(t, `{"songId":"s1","durationSeconds":420}`, string(list[1].Metadata))

		total, err := s.RewardTotal(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), total)

		// Rewards never touch the credit balance.
		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Credits)
	})

	t.Run("reward for unknown user", func(t *testing.T) {
		s := open(t)
		_, err := s.InsertReward(ctx, domain.Reward{UserID: 4242, Type: domain.RewardListening, Points: 1})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("empty sums", func(t *testing.T) {
		s := open(t)
		u := newUser(t, s, "g@planetq.fm")
		totals, err := s.LedgerTotals(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LedgerTotals{}, totals)
		total, err := s.RewardTotal(ctx, u.ID)
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}
