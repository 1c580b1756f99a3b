package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var schema = []struct {
	name string
	ddl  string
}{
	{"users", `CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role VARCHAR(16) NOT NULL,
		first_name VARCHAR(100) NOT NULL DEFAULT '',
		last_name VARCHAR(100) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"events", `CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		creator_id UUID NOT NULL REFERENCES users (id),
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location VARCHAR(255) NOT NULL DEFAULT '',
		starts_at TIMESTAMPTZ NOT NULL,
		price NUMERIC(12, 2) NOT NULL DEFAULT 0,
		currency CHAR(3) NOT NULL,
		capacity INTEGER,
		tickets_remaining INTEGER CHECK (tickets_remaining >= 0),
		is_public BOOLEAN NOT NULL DEFAULT true,
		status VARCHAR(16) NOT NULL DEFAULT 'DRAFT',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"ticket_types", `CREATE TABLE IF NOT EXISTS ticket_types (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events (id),
		name VARCHAR(100) NOT NULL,
		price NUMERIC(12, 2) NOT NULL,
		capacity INTEGER,
		remaining INTEGER CHECK (remaining >= 0)
	);`},
	{"payments", `CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		reference VARCHAR(64) NOT NULL UNIQUE,
		user_id UUID NOT NULL REFERENCES users (id),
		event_id UUID NOT NULL REFERENCES events (id),
		ticket_type_id UUID REFERENCES ticket_types (id),
		quantity INTEGER NOT NULL,
		unit_price NUMERIC(12, 2) NOT NULL,
		amount NUMERIC(12, 2) NOT NULL,
		currency CHAR(3) NOT NULL,
		email VARCHAR(255) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		authorization_url TEXT NOT NULL DEFAULT '',
		gateway_status VARCHAR(32) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		verified_at TIMESTAMPTZ
	);`},
	{"tickets", `CREATE TABLE IF NOT EXISTS tickets (
		id UUID PRIMARY KEY,
		code VARCHAR(128) NOT NULL UNIQUE,
		event_id UUID NOT NULL REFERENCES events (id),
		user_id UUID NOT NULL REFERENCES users (id),
		ticket_type_id UUID REFERENCES ticket_types (id),
		payment_id UUID REFERENCES payments (id),
		price NUMERIC(12, 2) NOT NULL,
		currency CHAR(3) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'VALID',
		scanned_at TIMESTAMPTZ,
		scanned_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"reminders", `CREATE TABLE IF NOT EXISTS reminders (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users (id),
		event_id UUID NOT NULL REFERENCES events (id),
		fire_at TIMESTAMPTZ NOT NULL,
		type VARCHAR(32) NOT NULL,
		sent BOOLEAN NOT NULL DEFAULT false,
		sent_at TIMESTAMPTZ,
		claimed_until TIMESTAMPTZ,
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"reminders default index", `CREATE UNIQUE INDEX IF NOT EXISTS reminders_one_default
		ON reminders (user_id, event_id) WHERE type = 'CREATOR_DEFAULT';`},
	{"reminders due index", `CREATE INDEX IF NOT EXISTS reminders_due
		ON reminders (fire_at) WHERE NOT sent;`},
	{"tickets event index", `CREATE INDEX IF NOT EXISTS tickets_event
		ON tickets (event_id);`},
	{"payments pending index", `CREATE INDEX IF NOT EXISTS payments_pending
		ON payments (created_at) WHERE status = 'PENDING';`},
}

// InitialiseDB creates every table and index the repositories rely on.
func InitialiseDB(ctx context.Context, db *sqlx.DB) error {
	for _, s := range schema {
		if _, err := db.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("creating %s: %w", s.name, err)
		}
	}

	return nil
}
