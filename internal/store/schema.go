package store

// postgresMigrations is applied in order on every start; each statement is idempotent.
var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                  BIGSERIAL PRIMARY KEY,
		name                TEXT NOT NULL,
		email               TEXT NOT NULL UNIQUE,
		role                TEXT NOT NULL DEFAULT 'user',
		credits             BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
		max_monthly_credits BIGINT NOT NULL DEFAULT 0,
		total_credits_used  BIGINT NOT NULL DEFAULT 0,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS credit_logs (
		id            BIGSERIAL PRIMARY KEY,
		user_id       BIGINT NOT NULL REFERENCES users(id),
		amount        BIGINT NOT NULL,
		balance_after BIGINT NOT NULL CHECK (balance_after >= 0),
		kind          TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_logs_user ON credit_logs (user_id, id)`,
	`CREATE TABLE IF NOT EXISTS rewards (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users(id),
		type        TEXT NOT NULL,
		points      BIGINT NOT NULL CHECK (points >= 0),
		description TEXT NOT NULL DEFAULT '',
		metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rewards_user ON rewards (user_id, id)`,
	`CREATE OR REPLACE FUNCTION reject_ledger_mutation() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
	END;
	$$ LANGUAGE plpgsql`,
	`CREATE OR REPLACE TRIGGER credit_logs_append_only
		BEFORE UPDATE OR DELETE ON credit_logs
		FOR EACH ROW EXECUTE FUNCTION reject_ledger_mutation()`,
	`CREATE OR REPLACE TRIGGER rewards_append_only
		BEFORE UPDATE OR DELETE ON rewards
		FOR EACH ROW EXECUTE FUNCTION reject_ledger_mutation()`,
}

// sqliteMigrations mirrors postgresMigrations. Timestamps are RFC 3339 text.
var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		name                TEXT NOT NULL,
		email               TEXT NOT NULL UNIQUE,
		role                TEXT NOT NULL DEFAULT 'user',
		credits             INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
		max_monthly_credits INTEGER NOT NULL DEFAULT 0,
		total_credits_used  INTEGER NOT NULL DEFAULT 0,
		created_at          TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credit_logs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id       INTEGER NOT NULL REFERENCES users(id),
		amount        INTEGER NOT NULL,
		balance_after INTEGER NOT NULL CHECK (balance_after >= 0),
		kind          TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_logs_user ON credit_logs (user_id, id)`,
	`CREATE TABLE IF NOT EXISTS rewards (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL REFERENCES users(id),
		type        TEXT NOT NULL,
		points      INTEGER NOT NULL CHECK (points >= 0),
		description TEXT NOT NULL DEFAULT '',
		metadata    TEXT NOT NULL DEFAULT '{}',
		created_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rewards_user ON rewards (user_id, id)`,
	`CREATE TRIGGER IF NOT EXISTS credit_logs_no_update BEFORE UPDATE ON credit_logs
	BEGIN SELECT RAISE(ABORT, 'credit_logs is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS credit_logs_no_delete BEFORE DELETE ON credit_logs
	BEGIN SELECT RAISE(ABORT, 'credit_logs is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS rewards_no_update BEFORE UPDATE ON rewards
	BEGIN SELECT RAISE(ABORT, 'rewards is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS rewards_no_delete BEFORE DELETE ON rewards
	BEGIN SELECT RAISE(ABORT, 'rewards is append-only'); END`,
}
