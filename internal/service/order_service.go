package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusprint/print-api/internal/dto"
	"github.com/campusprint/print-api/internal/models"
	"github.com/campusprint/print-api/internal/pagerange"
	"github.com/campusprint/print-api/internal/pricing"
	"github.com/campusprint/print-api/internal/repository"
	appErrors "github.com/campusprint/print-api/pkg/errors"
)

type orderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByTrackingCode(ctx context.Context, code string) (*models.Order, error)
	SearchByName(ctx context.Context, name string) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	DeleteCollected(ctx context.Context, id string) error
}

type codeIssuer interface {
	Generate(ctx context.Context) (string, error)
}

// OrderConfig tunes order intake and lookup behaviour.
type OrderConfig struct {
	Rates            pricing.Rates
	StrictPageRanges bool
	StatusCacheTTL   time.Duration
}

// OrderService owns the order lifecycle: intake with authoritative pricing,
// tracking code assignment, lookup, and the fulfillment state machine.
type OrderService struct {
	repo      orderRepository
	codes     codeIssuer
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    OrderConfig
}

// NewOrderService constructs an OrderService.
func NewOrderService(repo orderRepository, codes codeIssuer, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg OrderConfig) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.StatusCacheTTL <= 0 {
		cfg.StatusCacheTTL = 30 * time.Second
	}
	return &OrderService{
		repo:      repo,
		codes:     codes,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
	}
}

func statusCacheKey(token string) string {
	return "order:status:" + token
}

// normalizeStatus matches a client-supplied status case-insensitively.
func normalizeStatus(raw string) (models.OrderStatus, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range []models.OrderStatus{models.StatusPending, models.StatusPrinted, models.StatusCollected} {
		if strings.EqualFold(raw, string(s)) {
			return s, true
		}
	}
	return "", false
}

// Create validates the intake payload, resolves the color selection, computes
// the authoritative cost and persists the order with a fresh tracking code.
// Any client-submitted total is discarded. A unique constraint hit on the
// tracking code triggers exactly one regenerate-and-retry cycle.
func (s *OrderService) Create(ctx context.Context, req dto.CreateOrderRequest) (*models.Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order payload")
	}

	files := make(models.FileEntries, 0, len(req.Files))
	totalPages := 0
	for _, f := range req.Files {
		totalPages += f.PageCount
		files = append(files, models.FileEntry{
			FileURL:   f.FileURL,
			FileName:  f.FileName,
			PageCount: f.PageCount,
		})
	}
	if totalPages == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "order has no pages to print")
	}

	colorSpec, sel, colorCount, err := s.resolveColor(req, totalPages)
	if err != nil {
		return nil, err
	}
	quote := pricing.Compute(totalPages, req.Copies, sel, colorCount, s.config.Rates)

	var contact *string
	if c := strings.TrimSpace(req.Contact); c != "" {
		contact = &c
	}

	order := &models.Order{
		ID:            uuid.NewString(),
		StudentName:   strings.TrimSpace(req.StudentName),
		StudentID:     strings.TrimSpace(req.StudentID),
		Contact:       contact,
		Files:         files,
		Copies:        req.Copies,
		ColorSpec:     colorSpec,
		Instructions:  strings.TrimSpace(req.Instructions),
		TotalCost:     quote.TotalCost,
		TransactionID: strings.TrimSpace(req.TransactionID),
		Status:        models.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	for attempt := 0; ; attempt++ {
		code, err := s.codes.Generate(ctx)
		if err != nil {
			return nil, err
		}
		order.TrackingCode = code

		err = s.repo.Create(ctx, order)
		if err == nil {
			break
		}
		if repository.IsUniqueViolation(err) {
			if attempt == 0 {
				s.metrics.ObserveCodeGenRetry()
				s.logger.Warn("tracking code collided at persist, regenerating", zap.String("code", code))
				continue
			}
			return nil, appErrors.Clone(appErrors.ErrCodeGenExhausted, "tracking code collided twice")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist order")
	}

	s.metrics.ObserveOrderCreated(order.TotalCost)
	s.logger.Info("order created",
		zap.String("id", order.ID),
		zap.String("trackingCode", order.TrackingCode),
		zap.Int("files", len(order.Files)),
		zap.Int("pages", totalPages),
		zap.Int64("totalCost", order.TotalCost),
	)
	return order, nil
}

// resolveColor turns the request's color specification into the canonical
// stored spec and a pricing selection. Per-file specs, when present, are
// evaluated against each file's own pages and shifted into the concatenated
// numbering; otherwise the order-level spec applies to the whole document.
func (s *OrderService) resolveColor(req dto.CreateOrderRequest, totalPages int) (string, pricing.Selection, int, error) {
	opts := pagerange.Options{Strict: s.config.StrictPageRanges}

	perFile := false
	for _, f := range req.Files {
		if strings.TrimSpace(f.ColorSpec) != "" {
			perFile = true
			break
		}
	}

	if perFile {
		specs := make([]pagerange.FileSpec, 0, len(req.Files))
		for _, f := range req.Files {
			specs = append(specs, pagerange.FileSpec{Spec: strings.TrimSpace(f.ColorSpec), Pages: f.PageCount})
		}
		pages, err := pagerange.FlattenFiles(specs, opts)
		if err != nil {
			return "", pricing.SelectionNone, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid color pages: %v", err))
		}
		if len(pages) == 0 {
			return "", pricing.SelectionNone, 0, nil
		}
		if len(pages) == totalPages {
			return models.ColorSpecAll, pricing.SelectionAll, totalPages, nil
		}
		return pagerange.Canonical(pages), pricing.SelectionPages, len(pages), nil
	}

	spec := strings.TrimSpace(req.ColorSpec)
	switch spec {
	case "":
		return "", pricing.SelectionNone, 0, nil
	case pagerange.All:
		return models.ColorSpecAll, pricing.SelectionAll, totalPages, nil
	}

	pages, err := pagerange.ParseWith(spec, totalPages, opts)
	if err != nil {
		return "", pricing.SelectionNone, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid color pages: %v", err))
	}
	if len(pages) == 0 {
		return "", pricing.SelectionNone, 0, nil
	}
	return pagerange.Canonical(pages), pricing.SelectionPages, len(pages), nil
}

// FindByToken resolves an order by tracking code first, falling back to the
// order ID when the token parses as a UUID.
func (s *OrderService) FindByToken(ctx context.Context, token string) (*models.Order, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tracking code is required")
	}

	order, err := s.repo.GetByTrackingCode(ctx, token)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up order")
	}

	if _, parseErr := uuid.Parse(token); parseErr == nil {
		order, err = s.repo.GetByID(ctx, token)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up order")
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
}

// StatusSummary returns the public status view for a tracking code or order
// ID, served from cache when enabled.
func (s *OrderService) StatusSummary(ctx context.Context, token string) (*models.OrderSummary, error) {
	key := statusCacheKey(strings.TrimSpace(token))

	var cached models.OrderSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	order, err := s.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	summary := order.Summary()
	_ = s.cache.Set(ctx, key, summary, s.config.StatusCacheTTL)
	return &summary, nil
}

// SearchByName lists public summaries of orders whose student name contains
// the query, case-insensitively, newest first.
func (s *OrderService) SearchByName(ctx context.Context, name string) ([]models.OrderSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "search name is required")
	}

	orders, err := s.repo.SearchByName(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search orders")
	}

	summaries := make([]models.OrderSummary, 0, len(orders))
	for i := range orders {
		summaries = append(summaries, orders[i].Summary())
	}
	return summaries, nil
}

// ListAll returns every order with full details, newest first. Admin only.
func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	orders, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orders")
	}
	return orders, nil
}

// UpdateStatus advances an order along Pending -> Printed -> Collected. The
// store's conditional update arbitrates concurrent transitions; a lost race
// surfaces as an invalid transition.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (*models.Order, error) {
	next, ok := normalizeStatus(status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
	}

	order, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrTransition,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, next))
	}

	if err := s.repo.UpdateStatus(ctx, order.ID, order.Status, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTransition,
				fmt.Sprintf("order is no longer %s", order.Status))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}

	s.metrics.ObserveStatusTransition(order.Status, next)
	s.invalidateStatus(ctx, order)
	s.logger.Info("order status updated",
		zap.String("id", order.ID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(next)),
	)

	order.Status = next
	return order, nil
}

// Delete removes a collected order. Orders still in the pipeline cannot be
// deleted.
func (s *OrderService) Delete(ctx context.Context, id string) error {
	order, err := s.getByID(ctx, id)
	if err != nil {
		return err
	}

	if !order.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrTransition, "only collected orders can be deleted")
	}

	if err := s.repo.DeleteCollected(ctx, order.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete order")
	}

	s.invalidateStatus(ctx, order)
	s.logger.Info("order deleted", zap.String("id", order.ID), zap.String("trackingCode", order.TrackingCode))
	return nil
}

func (s *OrderService) getByID(ctx context.Context, id string) (*models.Order, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid order id")
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	return order, nil
}

func (s *OrderService) invalidateStatus(ctx context.Context, order *models.Order) {
	_ = s.cache.Invalidate(ctx, statusCacheKey(order.TrackingCode), statusCacheKey(order.ID))
}
