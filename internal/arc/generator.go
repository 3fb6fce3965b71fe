package arc

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"emcs/internal/arc/metrics"
	"emcs/internal/platform/logger"
	dErrors "emcs/pkg/domain-errors"
)

const (
	// DefaultMaxAttempts bounds candidate generation before giving up.
	DefaultMaxAttempts = 5
	// DefaultJurisdiction is used when no country code is configured.
	DefaultJurisdiction = "EU"
)

var randomBound = new(big.Int).Exp(big.NewInt(10), big.NewInt(randomDigits), nil)

// Lookup reports whether a code is already held by a consignment.
type Lookup interface {
	Exists(ctx context.Context, code Code) (bool, error)
}

// Reserver atomically claims a code. Reserve returns false when the code
// was already claimed.
type Reserver interface {
	Reserve(ctx context.Context, code Code) (bool, error)
}

// Generator mints unique reference codes.
type Generator struct {
	lookup       Lookup
	reserver     Reserver
	jurisdiction string
	maxAttempts  int
	random       io.Reader
	clock        func() time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Generator)

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// WithReserver adds an atomic reservation step after the lookup, closing
// the check-then-issue race between concurrent creations.
func WithReserver(r Reserver) Option {
	return func(g *Generator) {
		g.reserver = r
	}
}

// WithJurisdiction sets the two-letter country code embedded in codes.
func WithJurisdiction(code string) Option {
	return func(g *Generator) {
		g.jurisdiction = code
	}
}

func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithRandom replaces crypto/rand as the source of the random digits.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		g.random = r
	}
}

func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		g.clock = clock
	}
}

// NewGenerator constructs a Generator. lookup is required.
func NewGenerator(lookup Lookup, opts ...Option) (*Generator, error) {
	if lookup == nil {
		panic("arc: lookup is required")
	}
	g := &Generator{
		lookup:       lookup,
		jurisdiction: DefaultJurisdiction,
		maxAttempts:  DefaultMaxAttempts,
		random:       rand.Reader,
		clock:        time.Now,
		logger:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if !isJurisdiction(g.jurisdiction) {
		return nil, fmt.Errorf("jurisdiction must be two uppercase letters, got %q", g.jurisdiction)
	}
	return g, nil
}

func isJurisdiction(s string) bool {
	return len(s) == 2 && s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z'
}

// Generate mints a code that no consignment holds yet.
//
// A failing uniqueness lookup is treated as "not found" so that issuance is
// not blocked by an unreachable lookup backend. This trades strict uniqueness
// for availability; the persistence layer still rejects a duplicate reference
// on insert.
func (g *Generator) Generate(ctx context.Context) (Code, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeTimeout, "reference code generation cancelled")
		}
		code, err := g.candidate()
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to compose reference code")
		}
		if g.taken(ctx, code, attempt) {
			g.metrics.IncCollisions()
			g.logger.WarnContext(ctx, "reference code collision",
				"attempt", attempt,
				"max_attempts", g.maxAttempts,
			)
			continue
		}
		g.metrics.IncIssued()
		return code, nil
	}
	g.metrics.IncExhausted()
	return "", dErrors.Newf(dErrors.CodeExhaustedRetries,
		"could not issue a unique reference code after %d attempts", g.maxAttempts)
}

func (g *Generator) taken(ctx context.Context, code Code, attempt int) bool {
	exists, err := g.lookup.Exists(ctx, code)
	if err != nil {
		g.metrics.IncLookupFailures()
		g.logger.WarnContext(ctx, "reference code uniqueness lookup failed, treating as not found",
			"attempt", attempt,
			"error", err,
		)
		exists = false
	}
	if exists {
		return true
	}
	if g.reserver == nil {
		return false
	}
	reserved, err := g.reserver.Reserve(ctx, code)
	if err != nil {
		g.metrics.IncLookupFailures()
		g.logger.WarnContext(ctx, "reference code reservation failed, treating as not found",
			"attempt", attempt,
			"error", err,
		)
		return false
	}
	return !reserved
}

func (g *Generator) candidate() (Code, error) {
	n, err := rand.Int(g.random, randomBound)
	if err != nil {
		return "", fmt.Errorf("read random digits: %w", err)
	}
	digits := n.Text(10)
	digits = strings.Repeat("0", randomDigits-len(digits)) + digits
	base := fmt.Sprintf("%02d%s%s", g.clock().UTC().Year()%100, g.jurisdiction, digits)
	check, err := Checksum(base)
	if err != nil {
		return "", err
	}
	return Code(fmt.Sprintf("%s%d", base, check)), nil
}
