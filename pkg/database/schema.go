package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS orders (
    id UUID PRIMARY KEY,
    student_name TEXT NOT NULL,
    student_id TEXT NOT NULL,
    contact TEXT,
    files JSONB NOT NULL DEFAULT '[]',
    copies INTEGER NOT NULL DEFAULT 1 CHECK (copies >= 1),
    color_spec TEXT NOT NULL DEFAULT '',
    instructions TEXT NOT NULL DEFAULT '',
    total_cost BIGINT NOT NULL,
    transaction_id TEXT NOT NULL,
    tracking_code TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL DEFAULT 'Pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_orders_student_name ON orders (LOWER(student_name));
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at DESC);
`

// InitSchema creates the orders table and its indexes if absent. The unique
// constraint on tracking_code is the final arbiter of code uniqueness.
func InitSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
