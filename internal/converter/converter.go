package converter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/dashbridge/internal/logging"
	"github.com/platformbuilds/dashbridge/internal/models"
)

// ProgressFunc receives one call per source panel, dropped panels included.
type ProgressFunc func(done, total int, message string)

// Converter turns Grafana dashboards into Kibana saved objects. It holds no
// per-conversion state and is safe for concurrent use.
type Converter struct {
	enricher      Enricher
	logger        logging.Logger
	newID         func() string
	now           func() time.Time
	enrichTimeout time.Duration
}

type Option func(*Converter)

// WithEnricher enables AI-assisted hints. A nil enricher keeps the static path.
func WithEnricher(e Enricher) Option {
	return func(c *Converter) { c.enricher = e }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Converter) { c.logger = logging.OrNop(l) }
}

// WithIDGenerator replaces uuid.NewString, mainly for deterministic tests.
func WithIDGenerator(f func() string) Option {
	return func(c *Converter) {
		if f != nil {
			c.newID = f
		}
	}
}

func WithClock(f func() time.Time) Option {
	return func(c *Converter) {
		if f != nil {
			c.now = f
		}
	}
}

// WithEnrichTimeout bounds every single enrichment call. Zero means no
// per-call bound beyond the caller's context.
func WithEnrichTimeout(d time.Duration) Option {
	return func(c *Converter) { c.enrichTimeout = d }
}

func New(opts ...Option) *Converter {
	c := &Converter{
		logger:        logging.Nop(),
		newID:         uuid.NewString,
		now:           time.Now,
		enrichTimeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HasEnricher reports whether conversions may carry AI hints.
func (c *Converter) HasEnricher() bool {
	return c.enricher != nil
}

// Convert never returns an error. Assembly failures and panics become a
// failed result carrying the message; elapsed time is always set.
func (c *Converter) Convert(ctx context.Context, d *models.GrafanaDashboard, opts models.ConversionOptions, progress ProgressFunc) (res models.ConversionResult) {
	start := c.now()
	res = models.ConversionResult{
		ID:               c.newID(),
		Status:           models.StatusProcessing,
		GrafanaDashboard: d,
		CreatedAt:        start.UTC(),
	}

	finish := func() {
		done := c.now().UTC()
		res.CompletedAt = &done
		res.ConversionTimeMs = done.Sub(start).Milliseconds()
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("dashboard conversion panicked", "conversion_id", res.ID, "panic", r)
			res.Status = models.StatusFailed
			res.KibanaDashboard = nil
			res.ErrorMessage = fmt.Sprintf("conversion panicked: %v", r)
			finish()
		}
	}()

	if d == nil {
		res.Status = models.StatusFailed
		res.ErrorMessage = "dashboard is required"
		finish()
		return res
	}

	kd, err := c.Assemble(ctx, d, opts, progress)
	if err != nil {
		c.logger.Warn("dashboard conversion failed", "conversion_id", res.ID, "title", d.Title, "error", err)
		res.Status = models.StatusFailed
		res.ErrorMessage = err.Error()
		finish()
		return res
	}

	res.Status = models.StatusCompleted
	res.KibanaDashboard = kd
	finish()
	c.logger.Debug("dashboard converted", "conversion_id", res.ID, "title", d.Title, "elapsed_ms", res.ConversionTimeMs)
	return res
}
