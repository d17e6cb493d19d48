package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campusprint/print-api/internal/models"
)

const uniqueViolation = "23505"

// OrderRepository persists orders. The tracking_code unique constraint makes
// it the final arbiter of code uniqueness across concurrent creations.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository constructs the repository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const orderColumns = `id, student_name, student_id, contact, files, copies, color_spec,
       instructions, total_cost, transaction_id, tracking_code, status, created_at`

// Create inserts the full order in one statement; either everything lands or
// nothing does. A tracking-code collision surfaces as a unique violation.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO orders
	(id, student_name, student_id, contact, files, copies, color_spec, instructions, total_cost, transaction_id, tracking_code, status, created_at)
	VALUES (:id, :student_name, :student_id, :contact, :files, :copies, :color_spec, :instructions, :total_cost, :transaction_id, :tracking_code, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, order); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// GetByID retrieves one order row.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByTrackingCode retrieves an order by its public tracking code.
func (r *OrderRepository) GetByTrackingCode(ctx context.Context, code string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tracking_code = $1`
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, code); err != nil {
		return nil, err
	}
	return &order, nil
}

// ExistsByTrackingCode is the pre-insert collision check for code generation.
func (r *OrderRepository) ExistsByTrackingCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM orders WHERE tracking_code = $1)`, code); err != nil {
		return false, fmt.Errorf("check tracking code: %w", err)
	}
	return exists, nil
}

// likeEscaper neutralises LIKE metacharacters so the user's query is matched
// literally inside the pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchByName returns orders whose student name contains the query,
// case-insensitively, newest first.
func (r *OrderRepository) SearchByName(ctx context.Context, name string) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE student_name ILIKE '%' || $1 || '%' ESCAPE '\' ORDER BY created_at DESC`
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, likeEscaper.Replace(name)); err != nil {
		return nil, fmt.Errorf("search orders: %w", err)
	}
	return orders, nil
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order from one status to another. The WHERE clause
// carries the expected current status so a concurrent transition loses with
// sql.ErrNoRows instead of overwriting.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	const query = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check status update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteCollected removes an order only while it sits in the terminal status.
func (r *OrderRepository) DeleteCollected(ctx context.Context, id string) error {
	const query = `DELETE FROM orders WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, models.StatusCollected)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
