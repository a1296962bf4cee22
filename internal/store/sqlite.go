package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/planetqradio/creditledger/internal/domain"
)

var _ domain.LedgerStore = (*SQLiteStore)(nil)

// SQLiteStore keeps the ledger in a single file. It holds exactly one
// connection, so transactions run one at a time and play the role of the
// row lock the Postgres store takes.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range sqliteMigrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

const sqliteUserColumns = `id, name, email, role, credits, max_monthly_credits, total_credits_used, created_at`

func (s *SQLiteStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, email, role, credits, max_monthly_credits, created_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		u.Name, u.Email, string(u.Role), u.MaxMonthlyCredits, formatTime(now),
	)
	if err != nil {
		if sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return domain.User{}, domain.ErrAlreadyExists
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user id: %w", err)
	}

	u.ID = id
	u.Credits = 0
	u.TotalCreditsUsed = 0
	u.CreatedAt = now
	return u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanSQLiteUser(s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) ApplyCredit(ctx context.Context, change domain.CreditChange) (domain.CreditLogEntry, domain.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	u, err := scanSQLiteUser(tx.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, change.UserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CreditLogEntry{}, domain.User{}, domain.ErrNotFound
		}
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("select user: %w", err)
	}

	if overflows(u.Credits, change.Amount) {
		return domain.CreditLogEntry{}, domain.User{}, domain.Validationf("balance would overflow")
	}
	balance := u.Credits + change.Amount
	if balance < 0 {
		return domain.CreditLogEntry{}, domain.User{}, domain.ErrInsufficientCredits
	}
	used := usageDelta(change)

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET credits = ?, total_credits_used = total_credits_used + ? WHERE id = ?`,
		balance, used, u.ID,
	); err != nil {
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("balance update failed: %w", err)
	}

	entry := domain.CreditLogEntry{
		UserID:       u.ID,
		Amount:       change.Amount,
		BalanceAfter: balance,
		Kind:         change.Kind,
		Description:  change.Description,
		CreatedAt:    time.Now().UTC(),
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO credit_logs (user_id, amount, balance_after, kind, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.Amount, entry.BalanceAfter, string(entry.Kind), entry.Description, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("ledger entry failed: %w", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("ledger entry id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("tx commit failed: %w", err)
	}

	u.Credits = balance
	u.TotalCreditsUsed += used
	return entry, u, nil
}

func (s *SQLiteStore) CreditLog(ctx context.Context, userID int64, limit int) ([]domain.CreditLogEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, balance_after, kind, description, created_at
		FROM credit_logs WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select credit log: %w", err)
	}
	defer rows.Close()

	var entries []domain.CreditLogEntry
	for rows.Next() {
		var e domain.CreditLogEntry
		var kind, created string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.BalanceAfter, &kind, &e.Description, &created); err != nil {
			return nil, fmt.Errorf("scan credit log: %w", err)
		}
		e.Kind = domain.CreditKind(kind)
		e.CreatedAt = parseTime(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) LedgerTotals(ctx context.Context, userID int64) (domain.LedgerTotals, error) {
	var t domain.LedgerTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT u.credits, COALESCE(SUM(c.amount), 0), COUNT(c.id)
		FROM users u LEFT JOIN credit_logs c ON c.user_id = u.id
		WHERE u.id = ?
		GROUP BY u.credits`,
		userID,
	).Scan(&t.Balance, &t.LedgerSum, &t.Entries)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerTotals{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LedgerTotals{}, fmt.Errorf("ledger totals: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) InsertReward(ctx context.Context, r domain.Reward) (domain.Reward, error) {
	r.Metadata = normalizeMetadata(r.Metadata)
	r.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rewards (user_id, type, points, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.UserID, string(r.Type), r.Points, r.Description, string(r.Metadata), formatTime(r.CreatedAt),
	)
	if err != nil {
		if sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return domain.Reward{}, domain.ErrNotFound
		}
		return domain.Reward{}, fmt.Errorf("insert reward: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return domain.Reward{}, fmt.Errorf("insert reward id: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ListRewards(ctx context.Context, userID int64, limit int) ([]domain.Reward, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, points, description, metadata, created_at
		FROM rewards WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select rewards: %w", err)
	}
	defer rows.Close()

	var rewards []domain.Reward
	for rows.Next() {
		var r domain.Reward
		var typ, metadata, created string
		if err := rows.Scan(&r.ID, &r.UserID, &typ, &r.Points, &r.Description, &metadata, &created); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		r.Type = domain.RewardType(typ)
		r.Metadata = json.RawMessage(metadata)
		r.CreatedAt = parseTime(created)
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

func (s *SQLiteStore) RewardTotal(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(points), 0) FROM rewards WHERE user_id = ?`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum rewards: %w", err)
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(row rowScanner) (domain.User, error) {
	var u domain.User
	var role, created string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.Credits, &u.MaxMonthlyCredits, &u.TotalCreditsUsed, &created); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.CreatedAt = parseTime(created)
	return u, nil
}

func sqliteCode(err error) int {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
