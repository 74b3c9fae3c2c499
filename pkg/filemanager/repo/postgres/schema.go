package postgres

import (
	"context"
	"fmt"
)

// Schema creates the users and tests tables when they do not exist.
// Each test name is unique per user.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id             BIGSERIAL PRIMARY KEY,
	full_name      TEXT        NOT NULL,
	email          TEXT        NOT NULL,
	password       TEXT        NOT NULL,
	birth_date     DATE        NOT NULL,
	biological_sex CHAR(1)     NOT NULL CHECK (biological_sex IN ('M', 'F')),
	creation_date  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT users_email_key UNIQUE (email)
);

CREATE TABLE IF NOT EXISTS tests (
	id              BIGSERIAL PRIMARY KEY,
	user_id         BIGINT      NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	test_name       TEXT        NOT NULL,
	url             TEXT        NOT NULL,
	submission_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT tests_user_id_test_name_key UNIQUE (user_id, test_name)
);
`

// EnsureSchema applies Schema. It is safe to call repeatedly.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
