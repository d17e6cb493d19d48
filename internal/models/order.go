package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusPrinted   OrderStatus = "Printed"
	StatusCollected OrderStatus = "Collected"
)

// Valid reports whether the status is a known state.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPrinted, StatusCollected:
		return true
	}
	return false
}

// Terminal reports whether the status permits deletion.
func (s OrderStatus) Terminal() bool {
	return s == StatusCollected
}

// CanTransitionTo enforces the fulfillment pipeline: Pending -> Printed ->
// Collected, one step at a time, never backwards.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusPrinted
	case StatusPrinted:
		return next == StatusCollected
	}
	return false
}

// ColorSpecAll selects every page for color printing.
const ColorSpecAll = "all"

// FileEntry is one uploaded document attached to an order. Entries are
// immutable once the order is created and are never shared across orders.
type FileEntry struct {
	FileURL   string `json:"fileUrl"`
	FileName  string `json:"fileName"`
	PageCount int    `json:"pageCount"`
}

// FileEntries stores the ordered file list as a JSONB column.
type FileEntries []FileEntry

// Value implements driver.Valuer.
func (f FileEntries) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal file entries: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (f *FileEntries) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported file entries source %T", src)
	}
	if len(raw) == 0 {
		*f = nil
		return nil
	}
	return json.Unmarshal(raw, f)
}

// Order is a print request. All fields are immutable after creation except
// Status.
type Order struct {
	ID            string      `db:"id" json:"id"`
	StudentName   string      `db:"student_name" json:"studentName"`
	StudentID     string      `db:"student_id" json:"studentId"`
	Contact       *string     `db:"contact" json:"contact,omitempty"`
	Files         FileEntries `db:"files" json:"files"`
	Copies        int         `db:"copies" json:"copies"`
	ColorSpec     string      `db:"color_spec" json:"colorSpec"`
	Instructions  string      `db:"instructions" json:"instructions"`
	TotalCost     int64       `db:"total_cost" json:"totalCost"`
	TransactionID string      `db:"transaction_id" json:"transactionId"`
	TrackingCode  string      `db:"tracking_code" json:"trackingCode"`
	Status        OrderStatus `db:"status" json:"status"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
}

// TotalPages sums the page counts of all attached files.
func (o *Order) TotalPages() int {
	total := 0
	for _, f := range o.Files {
		total += f.PageCount
	}
	return total
}

// FileNames joins the display names of all files in list order.
func (o *Order) FileNames() string {
	names := make([]string, 0, len(o.Files))
	for _, f := range o.Files {
		names = append(names, f.FileName)
	}
	return strings.Join(names, ", ")
}

// OrderSummary is the public status view; it omits contact details,
// instructions and payment information.
type OrderSummary struct {
	ID           string      `json:"id"`
	TrackingCode string      `json:"trackingCode"`
	Status       OrderStatus `json:"status"`
	StudentName  string      `json:"studentName"`
	FileNames    string      `json:"fileNames"`
	TotalCost    int64       `json:"totalCost"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Summary projects the order into its public view.
func (o *Order) Summary() OrderSummary {
	return OrderSummary{
		ID:           o.ID,
		TrackingCode: o.TrackingCode,
		Status:       o.Status,
		StudentName:  o.StudentName,
		FileNames:    o.FileNames(),
		TotalCost:    o.TotalCost,
		CreatedAt:    o.CreatedAt,
	}
}
