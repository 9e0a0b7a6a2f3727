package postgres

// Schema creates the ledger tables. Applied by Host.Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	live_until BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS ledger_entries_live_until_idx
	ON ledger_entries (live_until) WHERE live_until > 0;

CREATE TABLE IF NOT EXISTS ledger_events (
	id          BIGSERIAL PRIMARY KEY,
	topic       TEXT NOT NULL,
	subject     TEXT NOT NULL,
	payload     JSONB NOT NULL,
	ledger_time BIGINT NOT NULL
);
`
