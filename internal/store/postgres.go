package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planetqradio/creditledger/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var _ domain.LedgerStore = (*PostgresStore)(nil)

// PostgresStore is the production ledger store. Balance changes lock the
// user row with SELECT ... FOR UPDATE so concurrent writers serialize in
// the database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PoolOptions bounds the connection pool.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

// NewPostgresStore connects, pings and migrates.
func NewPostgresStore(ctx context.Context, connString string, opts PoolOptions) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = opts.MinConns
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range postgresMigrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

const pgUserColumns = `id, name, email, role, credits, max_monthly_credits, total_credits_used, created_at`

func (s *PostgresStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, role, credits, max_monthly_credits)
		VALUES ($1, $2, $3, 0, $4)
		RETURNING `+pgUserColumns,
		u.Name, u.Email, string(u.Role), u.MaxMonthlyCredits,
	)
	created, err := scanPgUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.User{}, domain.ErrAlreadyExists
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

// BulkCreateUsers loads users with COPY. Credits start at zero so no ledger
// entries are needed.
func (s *PostgresStore) BulkCreateUsers(ctx context.Context, users []domain.User) (int64, error) {
	rows := make([][]any, 0, len(users))
	now := time.Now()
	for _, u := range users {
		rows = append(rows, []any{u.Name, u.Email, string(u.Role), int64(0), u.MaxMonthlyCredits, now})
	}
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"users"},
		[]string{"name", "email", "role", "credits", "max_monthly_credits", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk insert failed: %w", err)
	}
	return n, nil
}

// CountUsers returns the number of mirrored identities.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id = $1`, id)
	u, err := scanPgUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// ApplyCredit runs under READ COMMITTED: the FOR UPDATE lock alone serializes
// writers to the same user, and waiting writers re-read the committed balance.
func (s *PostgresStore) ApplyCredit(ctx context.Context, change domain.CreditChange) (domain.CreditLogEntry, domain.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := scanPgUser(tx.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id = $1 FOR UPDATE`, change.UserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CreditLogEntry{}, domain.User{}, domain.ErrNotFound
		}
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("lock acquisition failed: %w", err)
	}

	if overflows(u.Credits, change.Amount) {
		return domain.CreditLogEntry{}, domain.User{}, domain.Validationf("balance would overflow")
	}
	balance := u.Credits + change.Amount
	if balance < 0 {
		return domain.CreditLogEntry{}, domain.User{}, domain.ErrInsufficientCredits
	}
	used := usageDelta(change)

	if _, err := tx.Exec(ctx,
		`UPDATE users SET credits = $2, total_credits_used = total_credits_used + $3 WHERE id = $1`,
		u.ID, balance, used,
	); err != nil {
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("balance update failed: %w", err)
	}

	entry := domain.CreditLogEntry{
		UserID:       u.ID,
		Amount:       change.Amount,
		BalanceAfter: balance,
		Kind:         change.Kind,
		Description:  change.Description,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO credit_logs (user_id, amount, balance_after, kind, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		entry.UserID, entry.Amount, entry.BalanceAfter, string(entry.Kind), entry.Description,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("ledger entry failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CreditLogEntry{}, domain.User{}, fmt.Errorf("tx commit failed: %w", err)
	}

	u.Credits = balance
	u.TotalCreditsUsed += used
	return entry, u, nil
}

func (s *PostgresStore) CreditLog(ctx context.Context, userID int64, limit int) ([]domain.CreditLogEntry, error) {
	query := `
		SELECT id, user_id, amount, balance_after, kind, description, created_at
		FROM credit_logs WHERE user_id = $1 ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select credit log: %w", err)
	}
	defer rows.Close()

	var entries []domain.CreditLogEntry
	for rows.Next() {
		var e domain.CreditLogEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.BalanceAfter, &kind, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit log: %w", err)
		}
		e.Kind = domain.CreditKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) LedgerTotals(ctx context.Context, userID int64) (domain.LedgerTotals, error) {
	var t domain.LedgerTotals
	err := s.pool.QueryRow(ctx, `
		SELECT u.credits, COALESCE(SUM(c.amount), 0)::BIGINT, COUNT(c.id)
		FROM users u LEFT JOIN credit_logs c ON c.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.credits`,
		userID,
	).Scan(&t.Balance, &t.LedgerSum, &t.Entries)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LedgerTotals{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LedgerTotals{}, fmt.Errorf("ledger totals: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) InsertReward(ctx context.Context, r domain.Reward) (domain.Reward, error) {
	metadata := normalizeMetadata(r.Metadata)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rewards (user_id, type, points, description, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		r.UserID, string(r.Type), r.Points, r.Description, string(metadata),
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return domain.Reward{}, domain.ErrNotFound
		}
		return domain.Reward{}, fmt.Errorf("insert reward: %w", err)
	}
	r.Metadata = metadata
	return r, nil
}

func (s *PostgresStore) ListRewards(ctx context.Context, userID int64, limit int) ([]domain.Reward, error) {
	query := `
		SELECT id, user_id, type, points, description, metadata, created_at
		FROM rewards WHERE user_id = $1 ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select rewards: %w", err)
	}
	defer rows.Close()

	var rewards []domain.Reward
	for rows.Next() {
		var r domain.Reward
		var typ string
		var metadata []byte
		if err := rows.Scan(&r.ID, &r.UserID, &typ, &r.Points, &r.Description, &metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		r.Type = domain.RewardType(typ)
		r.Metadata = json.RawMessage(metadata)
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

func (s *PostgresStore) RewardTotal(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(points), 0)::BIGINT FROM rewards WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum rewards: %w", err)
	}
	return total, nil
}

func scanPgUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.Credits, &u.MaxMonthlyCredits, &u.TotalCreditsUsed, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}
