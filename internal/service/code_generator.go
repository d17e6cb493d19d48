package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	appErrors "github.com/campusprint/print-api/pkg/errors"
)

type codeChecker interface {
	ExistsByTrackingCode(ctx context.Context, code string) (bool, error)
}

// CodeGenerator issues short human-copyable tracking codes. Candidates mix
// date/time components with randomness; each one is checked against the
// store before being handed out, and the persistence layer's unique
// constraint remains the final arbiter.
type CodeGenerator struct {
	store       codeChecker
	maxAttempts int
	now         func() time.Time
	random      func(n int) int
}

// NewCodeGenerator constructs a generator with the given attempt bound.
func NewCodeGenerator(store codeChecker, maxAttempts int) *CodeGenerator {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &CodeGenerator{
		store:       store,
		maxAttempts: maxAttempts,
		now:         time.Now,
		random:      rand.Intn,
	}
}

// candidate builds one tracking code. The first attempt packs day, month,
// seconds and two random digits; retries widen the random component to six
// digits, keeping the code within ten characters.
func candidate(at time.Time, random, attempt int) string {
	day := at.Day()
	month := int(at.Month())
	if attempt == 0 {
		return fmt.Sprintf("%02d%02d%02d%02d", day, month, at.Second(), random%100)
	}
	return fmt.Sprintf("%02d%02d%06d", day, month, random%1000000)
}

// Generate returns a code not currently present in the store, retrying up to
// the attempt bound. Exhaustion is an error; a non-unique code is never
// returned.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code := candidate(g.now(), g.random(1000000), attempt)
		exists, err := g.store.ExistsByTrackingCode(ctx, code)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "tracking code lookup failed")
		}
		if !exists {
			return code, nil
		}
	}
	return "", appErrors.ErrCodeGenExhausted
}
