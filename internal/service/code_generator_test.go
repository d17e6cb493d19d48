package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/campusprint/print-api/pkg/errors"
)

type codeSet struct {
	mu    sync.Mutex
	codes map[string]bool
}

func newCodeSet(seed ...string) *codeSet {
	s := &codeSet{codes: make(map[string]bool)}
	for _, c := range seed {
		s.codes[c] = true
	}
	return s
}

func (s *codeSet) ExistsByTrackingCode(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[code], nil
}

func TestCandidateFormat(t *testing.T) {
	at := time.Date(2025, time.March, 7, 14, 30, 42, 0, time.UTC)

	first := candidate(at, 5, 0)
	assert.Equal(t, "07034205", first)
	assert.Len(t, first, 8)

	widened := candidate(at, 123456, 1)
	assert.Equal(t, "0703123456", widened)
	assert.Len(t, widened, 10)
}

func TestCandidateSingleDigitPadding(t *testing.T) {
	at := time.Date(2025, time.January, 2, 9, 0, 3, 0, time.UTC)
	assert.Equal(t, "02010301", candidate(at, 1, 0))
	assert.Equal(t, "0201000042", candidate(at, 42, 3))
}

func TestGenerateReturnsUnusedCode(t *testing.T) {
	gen := NewCodeGenerator(newCodeSet(), 10)
	code, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, code)
	assert.LessOrEqual(t, len(code), 10)
}

func TestGenerateWidensOnCollision(t *testing.T) {
	at := time.Date(2025, time.March, 7, 14, 30, 42, 0, time.UTC)
	taken := candidate(at, 7, 0)

	gen := NewCodeGenerator(newCodeSet(taken), 10)
	gen.now = func() time.Time { return at }
	gen.random = func(int) int { return 7 }

	code, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, candidate(at, 7, 1), code)
	assert.Len(t, code, 10)
}

func TestGenerateExhaustsAfterMaxAttempts(t *testing.T) {
	set := newCodeSet()
	gen := NewCodeGenerator(set, 3)

	at := time.Date(2025, time.March, 7, 14, 30, 42, 0, time.UTC)
	gen.now = func() time.Time { return at }
	gen.random = func(int) int { return 7 }
	for attempt := 0; attempt < 3; attempt++ {
		set.codes[candidate(at, 7, attempt)] = true
	}

	calls := 0
	gen.random = func(int) int { calls++; return 7 }

	_, err := gen.Generate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrCodeGenExhausted)
	assert.Equal(t, 3, calls)
}

func TestGenerateDefaultsAttemptBound(t *testing.T) {
	gen := NewCodeGenerator(newCodeSet(), 0)
	assert.Equal(t, 10, gen.maxAttempts)
}
