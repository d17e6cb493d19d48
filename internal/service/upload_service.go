package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/campusprint/print-api/internal/dto"
	"github.com/campusprint/print-api/pkg/blobstore"
	appErrors "github.com/campusprint/print-api/pkg/errors"
	"github.com/campusprint/print-api/pkg/pdfinfo"
	"github.com/campusprint/print-api/pkg/workpool"
)

const uploadNamespace = "uploads"

// UploadConfig bounds upload intake.
type UploadConfig struct {
	MaxFileSizeBytes int64
	ParseTimeout     time.Duration
}

// UploadService receives a document, verifies it is a readable PDF, counts
// its pages and stores it in the blob store. Parsing runs on a bounded pool
// so a burst of uploads queues instead of exhausting the process.
type UploadService struct {
	blobs   blobstore.Store
	pool    *workpool.Pool
	metrics *MetricsService
	logger  *zap.Logger
	config  UploadConfig
}

// NewUploadService constructs an UploadService.
func NewUploadService(blobs blobstore.Store, pool *workpool.Pool, metrics *MetricsService, logger *zap.Logger, cfg UploadConfig) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pool == nil {
		pool = workpool.New(1, logger)
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 20 * 1024 * 1024
	}
	if cfg.ParseTimeout <= 0 {
		cfg.ParseTimeout = 30 * time.Second
	}
	return &UploadService{blobs: blobs, pool: pool, metrics: metrics, logger: logger, config: cfg}
}

// Process validates, counts and stores one uploaded document. declaredSize
// is advisory; the stream itself is still capped while reading.
func (s *UploadService) Process(ctx context.Context, fileName, contentType string, declaredSize int64, r io.Reader) (*dto.UploadResponse, error) {
	if fileName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file name is required")
	}
	if contentType != "application/pdf" {
		s.metrics.ObserveUpload("rejected", 0)
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("content type must be application/pdf, got %q", contentType))
	}
	if declaredSize > s.config.MaxFileSizeBytes {
		s.metrics.ObserveUpload("rejected", 0)
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.ParseTimeout)
	defer cancel()

	var result *dto.UploadResponse
	err := s.pool.Do(ctx, "upload", func(ctx context.Context) error {
		data, err := io.ReadAll(io.LimitReader(r, s.config.MaxFileSizeBytes+1))
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
		}
		if int64(len(data)) > s.config.MaxFileSizeBytes {
			s.metrics.ObserveUpload("rejected", 0)
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
		}

		pages, err := pdfinfo.PageCount(data)
		if err != nil {
			s.metrics.ObserveUpload("rejected", 0)
			if errors.Is(err, pdfinfo.ErrNotPDF) {
				return appErrors.Clone(appErrors.ErrInvalidDocument, "uploaded file is not a PDF")
			}
			return appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "failed to parse PDF")
		}

		ref, err := s.blobs.Upload(ctx, uploadNamespace, fileName, "application/pdf", data)
		if err != nil {
			s.metrics.ObserveUpload("failed", 0)
			return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store upload")
		}

		s.metrics.ObserveUpload("accepted", pages)
		s.logger.Info("upload accepted",
			zap.String("fileName", fileName),
			zap.String("path", ref.Path),
			zap.Int("pages", pages),
			zap.Int("bytes", len(data)),
		)

		result = &dto.UploadResponse{
			FileURL:   ref.URL,
			FileName:  fileName,
			PageCount: pages,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "upload processing timed out")
		}
		return nil, err
	}
	return result, nil
}
