package dto

// OrderFile is one uploaded document as submitted in a create request. The
// optional per-file colorSpec is evaluated against that file's own pages and
// shifted into the global numbering at intake.
type OrderFile struct {
	FileURL   string `json:"fileUrl" validate:"required"`
	FileName  string `json:"fileName" validate:"required"`
	PageCount int    `json:"pageCount" validate:"gte=0"`
	ColorSpec string `json:"colorSpec"`
}

// CreateOrderRequest is the order intake payload. TotalCost is accepted for
// wire compatibility but never trusted; the server recomputes it.
type CreateOrderRequest struct {
	StudentName   string      `json:"studentName" validate:"required"`
	StudentID     string      `json:"studentId" validate:"required"`
	Contact       string      `json:"contact"`
	Files         []OrderFile `json:"files" validate:"required,min=1,dive"`
	Copies        int         `json:"copies" validate:"gte=1"`
	ColorSpec     string      `json:"colorSpec"`
	Instructions  string      `json:"instructions"`
	TransactionID string      `json:"transactionId" validate:"required"`
	TotalCost     int64       `json:"totalCost"`
}

// UpdateStatusRequest moves an order along the fulfillment pipeline.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UploadResponse describes a stored upload ready to attach to an order.
type UploadResponse struct {
	FileURL   string `json:"fileUrl"`
	FileName  string `json:"fileName"`
	PageCount int    `json:"pageCount"`
}
