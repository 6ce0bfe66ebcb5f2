package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id                  INTEGER PRIMARY KEY,
    reference_number    TEXT NOT NULL UNIQUE,
    title               TEXT NOT NULL,
    description         TEXT NOT NULL,
    category            TEXT NOT NULL,
    color               TEXT NOT NULL DEFAULT '',
    condition           TEXT NOT NULL DEFAULT '',
    location            TEXT NOT NULL,
    date                TEXT NOT NULL,
    status              TEXT NOT NULL CHECK (status IN ('lost', 'found', 'on_hold', 'claimed', 'returned', 'archived')),
    verification_status TEXT NOT NULL DEFAULT 'pending' CHECK (verification_status IN ('pending', 'approved', 'rejected', 'needs_info')),
    reporter_id         INTEGER NOT NULL REFERENCES users(id),
    admin_notes         TEXT NOT NULL DEFAULT '',
    created_at          DATETIME NOT NULL,
    updated_at          DATETIME NOT NULL,
    verified_at         DATETIME
);

CREATE INDEX IF NOT EXISTS idx_items_verification ON items(verification_status, created_at);
CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);

CREATE TABLE IF NOT EXISTS item_timeline (
    id          INTEGER PRIMARY KEY,
    item_id     INTEGER NOT NULL REFERENCES items(id),
    action      TEXT NOT NULL,
    description TEXT NOT NULL,
    actor_id    INTEGER NOT NULL DEFAULT 0,
    created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_item_timeline_item ON item_timeline(item_id, id);

CREATE TABLE IF NOT EXISTS claims (
    id                   INTEGER PRIMARY KEY,
    item_id              INTEGER NOT NULL REFERENCES items(id),
    claimant_id          INTEGER NOT NULL REFERENCES users(id),
    verification_details TEXT NOT NULL,
    claimed_color        TEXT NOT NULL,
    claimed_condition    TEXT NOT NULL,
    claimed_location     TEXT NOT NULL,
    claimed_date         TEXT NOT NULL,
    status               TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'denied', 'on_hold', 'needs_info')),
    reason               TEXT NOT NULL DEFAULT '',
    hold_expires_at      DATETIME,
    created_at           DATETIME NOT NULL,
    updated_at           DATETIME NOT NULL,
    resolved_at          DATETIME
);

CREATE INDEX IF NOT EXISTS idx_claims_item ON claims(item_id, status);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status, created_at);
CREATE INDEX IF NOT EXISTS idx_claims_claimant ON claims(claimant_id);

-- At most one claim per item may lock it (approved or on hold).
CREATE UNIQUE INDEX IF NOT EXISTS idx_claims_item_lock
    ON claims(item_id) WHERE status IN ('approved', 'on_hold');

CREATE TABLE IF NOT EXISTS audit_log (
    id            INTEGER PRIMARY KEY,
    actor_id      INTEGER NOT NULL,
    action        TEXT NOT NULL,
    target_type   TEXT NOT NULL CHECK (target_type IN ('item', 'claim', 'settings')),
    target_id     INTEGER NOT NULL,
    before_status TEXT NOT NULL DEFAULT '',
    after_status  TEXT NOT NULL DEFAULT '',
    reason        TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_target ON audit_log(target_type, target_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);

CREATE TRIGGER IF NOT EXISTS audit_log_no_update
    BEFORE UPDATE ON audit_log
    BEGIN SELECT RAISE(ABORT, 'audit log is append-only'); END;

CREATE TRIGGER IF NOT EXISTS audit_log_no_delete
    BEFORE DELETE ON audit_log
    BEGIN SELECT RAISE(ABORT, 'audit log is append-only'); END;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
    id         INTEGER PRIMARY KEY,
    user_id    INTEGER NOT NULL REFERENCES users(id),
    type       TEXT NOT NULL,
    title      TEXT NOT NULL,
    message    TEXT NOT NULL,
    item_id    INTEGER,
    is_read    INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{}

// EnsureSchema creates all tables and indexes if they don't already exist and
// applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
