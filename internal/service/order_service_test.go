package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusprint/print-api/internal/dto"
	"github.com/campusprint/print-api/internal/models"
	"github.com/campusprint/print-api/internal/pricing"
	appErrors "github.com/campusprint/print-api/pkg/errors"
)

type memOrderStore struct {
	mu     sync.Mutex
	byID   map[string]models.Order
	byCode map[string]string
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{
		byID:   make(map[string]models.Order),
		byCode: make(map[string]string),
	}
}

func (m *memOrderStore) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byCode[order.TrackingCode]; taken {
		return &pq.Error{Code: pq.ErrorCode("23505"), Constraint: "orders_tracking_code_key"}
	}
	m.byID[order.ID] = *order
	m.byCode[order.TrackingCode] = order.ID
	return nil
}

func (m *memOrderStore) GetByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := order
	return &clone, nil
}

func (m *memOrderStore) GetByTrackingCode(_ context.Context, code string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := m.byID[id]
	return &clone, nil
}

func (m *memOrderStore) ExistsByTrackingCode(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byCode[code]
	return ok, nil
}

func (m *memOrderStore) SearchByName(_ context.Context, name string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(name)
	var out []models.Order
	for _, order := range m.byID {
		if strings.Contains(strings.ToLower(order.StudentName), needle) {
			out = append(out, order)
		}
	}
	return out, nil
}

func (m *memOrderStore) ListAll(_ context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Order, 0, len(m.byID))
	for _, order := range m.byID {
		out = append(out, order)
	}
	return out, nil
}

func (m *memOrderStore) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.byID[id]
	if !ok || order.Status != from {
		return sql.ErrNoRows
	}
	order.Status = to
	m.byID[id] = order
	return nil
}

func (m *memOrderStore) DeleteCollected(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.byID[id]
	if !ok || order.Status != models.StatusCollected {
		return sql.ErrNoRows
	}
	delete(m.byCode, order.TrackingCode)
	delete(m.byID, id)
	return nil
}

type scriptedCodes struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (s *scriptedCodes) Generate(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.codes) {
		return "", fmt.Errorf("scripted codes exhausted")
	}
	code := s.codes[s.next]
	s.next++
	return code, nil
}

func testRates() pricing.Rates {
	return pricing.Rates{BWRatePerPage: 2, ColorRatePerPage: 5, ServiceFee: 0}
}

func newOrderService(store *memOrderStore, codes codeIssuer) *OrderService {
	if codes == nil {
		codes = NewCodeGenerator(store, 10)
	}
	return NewOrderService(store, codes, nil, nil, validator.New(), zap.NewNop(), OrderConfig{Rates: testRates()})
}

func validCreateRequest() dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		StudentName: "Ada Lovelace",
		StudentID:   "CS-1815",
		Contact:     "ada@example.edu",
		Files: []dto.OrderFile{
			{FileURL: "http://blobs.local/uploads/a.pdf", FileName: "a.pdf", PageCount: 3},
			{FileURL: "http://blobs.local/uploads/b.pdf", FileName: "b.pdf", PageCount: 2},
		},
		Copies:        2,
		TransactionID: "TXN-100",
	}
}

func TestCreateComputesAuthoritativeCost(t *testing.T) {
	store := newMemOrderStore()
	svc := newOrderService(store, nil)

	req := validCreateRequest()
	req.ColorSpec = "2,4"
	req.TotalCost = 1 // client-submitted total is discarded

	order, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	// 5 pages x 2 copies: 4 color units at 5, 6 bw units at 2.
	assert.Equal(t, int64(32), order.TotalCost)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "2,4", order.ColorSpec)
	assert.NotEmpty(t, order.TrackingCode)
	assert.LessOrEqual(t, len(order.TrackingCode), 10)
	_, err = uuid.Parse(order.ID)
	require.NoError(t, err)

	stored, err := store.GetByTrackingCode(context.Background(), order.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
}

func TestCreateAllColor(t *testing.T) {
	svc := newOrderService(newMemOrderStore(), nil)

	req := validCreateRequest()
	req.ColorSpec = "all"

	order, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ColorSpecAll, order.ColorSpec)
	// 5 pages x 2 copies, all color at 5.
	assert.Equal(t, int64(50), order.TotalCost)
}

func TestCreateRejectsUppercaseAll(t *testing.T) {
	svc := newOrderService(newMemOrderStore(), nil)

	// The literal selector is exact-case; "ALL" is malformed like any
	// other non-numeric token.
	req := validCreateRequest()
	req.ColorSpec = "ALL"

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateFlattensPerFileColorSpecs(t *testing.T) {
	svc := newOrderService(newMemOrderStore(), nil)

	req := validCreateRequest()
	req.Files = []dto.OrderFile{
		{FileURL: "u1", FileName: "a.pdf", PageCount: 10, ColorSpec: "1,2"},
		{FileURL: "u2", FileName: "b.pdf", PageCount: 5, ColorSpec: "1"},
	}
	req.Copies = 1

	order, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	// Second file's page 1 is global page 11.
	assert.Equal(t, "1,2,11", order.ColorSpec)
	// 15 pages: 3 color at 5, 12 bw at 2.
	assert.Equal(t, int64(39), order.TotalCost)
}

func TestCreatePerFileAllCollapses(t *testing.T) {
	svc := newOrderService(newMemOrderStore(), nil)

	req := validCreateRequest()
	req.Files = []dto.OrderFile{
		{FileURL: "u1", FileName: "a.pdf", PageCount: 3, ColorSpec: "all"},
		{FileURL: "u2", FileName: "b.pdf", PageCount: 2, ColorSpec: "all"},
	}
	req.Copies = 1

	order, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ColorSpecAll, order.ColorSpec)
	assert.Equal(t, int64(25), order.TotalCost)
}

func TestCreateRejectsMalformedColorSpec(t *testing.T) {
	svc := newOrderService(newMemOrderStore(), nil)

	for _, spec := range []string{"x", "1,,3", "7-5", "1-x"} {
		req := validCreateRequest()
		req.ColorSpec = spec
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err, "spec %q", spec)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestCreateLenientlyDropsOutOfRangePages(t *testing.T) {
	svc := newOrderService(newMemOrderStore(), nil)

	req := validCreateRequest()
	req.ColorSpec = "7,9"

	order, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, order.ColorSpec)
	// All 10 units bill black and white.
	assert.Equal(t, int64(20), order.TotalCost)
}

func TestCreateStrictRejectsOutOfRangePages(t *testing.T) {
	store := newMemOrderStore()
	svc := NewOrderService(store, NewCodeGenerator(store, 10), nil, nil, validator.New(), zap.NewNop(),
		OrderConfig{Rates: testRates(), StrictPageRanges: true})

	req := validCreateRequest()
	req.ColorSpec = "7"

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateRejectsInvalidPayloads(t *testing.T) {
	svc := newOrderService(newMemOrderStore(), nil)

	noFiles := validCreateRequest()
	noFiles.Files = nil
	_, err := svc.Create(context.Background(), noFiles)
	require.Error(t, err)

	zeroCopies := validCreateRequest()
	zeroCopies.Copies = 0
	_, err = svc.Create(context.Background(), zeroCopies)
	require.Error(t, err)

	noPages := validCreateRequest()
	for i := range noPages.Files {
		noPages.Files[i].PageCount = 0
	}
	_, err = svc.Create(context.Background(), noPages)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateRegeneratesOnPersistCollision(t *testing.T) {
	store := newMemOrderStore()
	taken := validCreateRequest()

	seeded := newOrderService(store, &scriptedCodes{codes: []string{"01010101"}})
	_, err := seeded.Create(context.Background(), taken)
	require.NoError(t, err)

	svc := newOrderService(store, &scriptedCodes{codes: []string{"01010101", "0101424242"}})
	order, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "0101424242", order.TrackingCode)
}

func TestCreateSurfacesExhaustionAfterSecondCollision(t *testing.T) {
	store := newMemOrderStore()

	for _, code := range []string{"01010101", "0101424242"} {
		seeded := newOrderService(store, &scriptedCodes{codes: []string{code}})
		_, err := seeded.Create(context.Background(), validCreateRequest())
		require.NoError(t, err)
	}

	svc := newOrderService(store, &scriptedCodes{codes: []string{"01010101", "0101424242"}})
	_, err := svc.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeGenExhausted.Code, appErrors.FromError(err).Code)
}

func TestConcurrentCreationsYieldDistinctCodes(t *testing.T) {
	store := newMemOrderStore()
	svc := newOrderService(store, nil)

	const n = 1000
	var wg sync.WaitGroup
	errs := make([]error, n)
	codes := make([]string, n)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			order, err := svc.Create(context.Background(), validCreateRequest())
			if err != nil {
				errs[i] = err
				return
			}
			codes[i] = order.TrackingCode
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "creation %d", i)
		require.NotEmpty(t, codes[i])
		require.False(t, seen[codes[i]], "duplicate tracking code %s", codes[i])
		seen[codes[i]] = true
	}
}

func TestFindByToken(t *testing.T) {
	store := newMemOrderStore()
	svc := newOrderService(store, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	byCode, err := svc.FindByToken(context.Background(), created.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byCode.ID)

	byID, err := svc.FindByToken(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.TrackingCode, byID.TrackingCode)

	_, err = svc.FindByToken(context.Background(), "99999999")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.FindByToken(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStatusSummaryOmitsPrivateDetails(t *testing.T) {
	store := newMemOrderStore()
	svc := newOrderService(store, nil)

	req := validCreateRequest()
	req.Instructions = "spiral binding"
	created, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	summary, err := svc.StatusSummary(context.Background(), created.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, created.TrackingCode, summary.TrackingCode)
	assert.Equal(t, models.StatusPending, summary.Status)
	assert.Equal(t, "a.pdf, b.pdf", summary.FileNames)
	assert.Equal(t, created.TotalCost, summary.TotalCost)
}

type memCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{entries: make(map[string][]byte)}
}

func (m *memCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memCacheRepo) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func TestStatusSummaryUsesCacheAndInvalidatesOnTransition(t *testing.T) {
	store := newMemOrderStore()
	cacheRepo := newMemCacheRepo()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewOrderService(store, NewCodeGenerator(store, 10), cacheSvc, nil, validator.New(), zap.NewNop(),
		OrderConfig{Rates: testRates(), StatusCacheTTL: time.Minute})

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	first, err := svc.StatusSummary(context.Background(), created.TrackingCode)
	require.NoError(t, err)
	second, err := svc.StatusSummary(context.Background(), created.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = svc.UpdateStatus(context.Background(), created.ID, string(models.StatusPrinted))
	require.NoError(t, err)

	after, err := svc.StatusSummary(context.Background(), created.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPrinted, after.Status)
}

func TestSearchByName(t *testing.T) {
	store := newMemOrderStore()
	svc := newOrderService(store, nil)

	req := validCreateRequest()
	req.StudentName = "Grace Hopper"
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	results, err := svc.SearchByName(context.Background(), "grace")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Grace Hopper", results[0].StudentName)

	_, err = svc.SearchByName(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateStatusWalksPipeline(t *testing.T) {
	store := newMemOrderStore()
	svc := newOrderService(store, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	// Status matching is case-insensitive on input.
	printed, err := svc.UpdateStatus(context.Background(), created.ID, "printed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPrinted, printed.Status)

	collected, err := svc.UpdateStatus(context.Background(), created.ID, string(models.StatusCollected))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCollected, collected.Status)
}

func TestUpdateStatusRejectsIllegalTransitions(t *testing.T) {
	store := newMemOrderStore()
	svc := newOrderService(store, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	// Skipping a stage is not allowed.
	_, err = svc.UpdateStatus(context.Background(), created.ID, string(models.StatusCollected))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTransition.Code, appErrors.FromError(err).Code)

	// Neither is moving backwards or standing still.
	_, err = svc.UpdateStatus(context.Background(), created.ID, string(models.StatusPending))
	require.Error(t, err)

	_, err = svc.UpdateStatus(context.Background(), created.ID, "shredded")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateStatus(context.Background(), created.ID, string(models.StatusPrinted))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), created.ID, string(models.StatusCollected))
	require.NoError(t, err)

	// Terminal orders stay terminal.
	_, err = svc.UpdateStatus(context.Background(), created.ID, string(models.StatusPrinted))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTransition.Code, appErrors.FromError(err).Code)
}

// staleReadStore serves reads from a snapshot taken before a competing
// transition, forcing the conditional update to arbitrate.
type staleReadStore struct {
	*memOrderStore
	snapshot models.Order
}

func (s *staleReadStore) GetByID(context.Context, string) (*models.Order, error) {
	clone := s.snapshot
	return &clone, nil
}

func TestUpdateStatusLostRaceSurfacesConflict(t *testing.T) {
	store := newMemOrderStore()
	svc := newOrderService(store, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	// Another worker wins the transition after this caller read the order.
	require.NoError(t, store.UpdateStatus(context.Background(), created.ID, models.StatusPending, models.StatusPrinted))

	stale := &staleReadStore{memOrderStore: store, snapshot: *created}
	svcStale := NewOrderService(stale, NewCodeGenerator(store, 10), nil, nil, validator.New(), zap.NewNop(),
		OrderConfig{Rates: testRates()})

	_, err = svcStale.UpdateStatus(context.Background(), created.ID, string(models.StatusPrinted))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTransition.Code, appErrors.FromError(err).Code)
}

func TestDeleteOnlyCollectedOrders(t *testing.T) {
	store := newMemOrderStore()
	svc := newOrderService(store, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTransition.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateStatus(context.Background(), created.ID, string(models.StatusPrinted))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), created.ID, string(models.StatusCollected))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))

	_, err = svc.FindByToken(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteRejectsMalformedID(t *testing.T) {
	svc := newOrderService(newMemOrderStore(), nil)

	err := svc.Delete(context.Background(), "not-a-uuid")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
