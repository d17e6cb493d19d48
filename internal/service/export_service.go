package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/campusprint/print-api/internal/models"
	appErrors "github.com/campusprint/print-api/pkg/errors"
	"github.com/campusprint/print-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type orderLister interface {
	ListAll(ctx context.Context) ([]models.Order, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is one rendered export ready to stream to the client.
type ExportResult struct {
	Payload     []byte
	Filename    string
	ContentType string
}

// ExportService renders the full order book into downloadable reports.
type ExportService struct {
	orders orderLister
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(orders orderLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{orders: orders, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

var exportHeaders = []string{
	"Tracking Code", "Student Name", "Student ID", "Files", "Pages", "Copies",
	"Color Pages", "Total Cost", "Transaction ID", "Status", "Created At",
}

// Generate renders every order into the requested format.
func (s *ExportService) Generate(ctx context.Context, format string) (*ExportResult, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load orders for export")
	}

	dataset := buildOrderDataset(orders)
	title := fmt.Sprintf("Print Orders %s", s.now().UTC().Format("2006-01-02"))

	var payload []byte
	var contentType string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("export generated", zap.String("format", format), zap.Int("orders", len(orders)))
	return &ExportResult{
		Payload:     payload,
		Filename:    fmt.Sprintf("orders_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		ContentType: contentType,
	}, nil
}

func buildOrderDataset(orders []models.Order) export.Dataset {
	rows := make([][]string, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		rows = append(rows, []string{
			o.TrackingCode,
			o.StudentName,
			o.StudentID,
			o.FileNames(),
			strconv.Itoa(o.TotalPages()),
			strconv.Itoa(o.Copies),
			o.ColorSpec,
			strconv.FormatInt(o.TotalCost, 10),
			o.TransactionID,
			string(o.Status),
			o.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
