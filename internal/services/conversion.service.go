package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/dashbridge/internal/artifacts"
	"github.com/platformbuilds/dashbridge/internal/config"
	"github.com/platformbuilds/dashbridge/internal/converter"
	"github.com/platformbuilds/dashbridge/internal/metrics"
	"github.com/platformbuilds/dashbridge/internal/models"
	"github.com/platformbuilds/dashbridge/internal/monitoring"
	"github.com/platformbuilds/dashbridge/internal/store"
	"github.com/platformbuilds/dashbridge/internal/tracing"
	"github.com/platformbuilds/dashbridge/pkg/logger"
)

const serviceName = "dashbridge"

// Progress messages reported to clients polling a job.
const (
	ProgressStarting  = "Starting conversion..."
	ProgressCompleted = "Conversion completed!"
	ProgressNotFound  = "Not started"
)

var (
	ErrInvalidJSON      = errors.New("invalid JSON")
	ErrInvalidDashboard = errors.New("invalid Grafana dashboard format")
	ErrInvalidOptions   = errors.New("invalid conversion options")
	ErrBatchTooLarge    = errors.New("batch exceeds maximum size")
)

// ConvertOutcome is what a synchronous conversion hands back to the API.
// FileID is set only when artifacts were written.
type ConvertOutcome struct {
	Result  models.ConversionResult  `json:"result"`
	JobID   string                   `json:"job_id"`
	FileID  string                   `json:"file_id,omitempty"`
	Summary models.ConversionSummary `json:"summary"`
	// KibanaPanels counts the panels emitted; row panels are not among them.
	KibanaPanels int `json:"-"`
}

// ConversionService ties the converter to persistence, artifacts, job
// progress and telemetry.
type ConversionService struct {
	converter *converter.Converter
	store     store.Store
	artifacts *artifacts.Store // nil disables artifact output
	tracer    *tracing.ConversionTracer
	logger    logger.Logger

	newID   func() string
	started time.Time

	mu           sync.RWMutex
	defaults     models.ConversionOptions
	limits       models.Limits
	batchWorkers int

	activeConversions atomic.Int64
	activeBatches     atomic.Int64

	// background batches outlive the request that started them
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewConversionService(
	conv *converter.Converter,
	st store.Store,
	art *artifacts.Store,
	tracer *tracing.ConversionTracer,
	log logger.Logger,
	cfg *config.Config,
) *ConversionService {
	if tracer == nil {
		tracer = tracing.NewConversionTracer(serviceName)
	}
	if log == nil {
		log = logger.NewNop()
	}
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &ConversionService{
		converter: conv,
		store:     st,
		artifacts: art,
		tracer:    tracer,
		logger:    log,
		newID:     uuid.NewString,
		started:   time.Now(),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	s.ApplyConfig(cfg)
	return s
}

// ApplyConfig swaps conversion defaults and limits. Jobs already running
// keep the options they started with.
func (s *ConversionService) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	defaults := DefaultsFromConfig(cfg.Conversion)
	limits := models.Limits{
		MaxPanelsPerDashboard:    cfg.Conversion.MaxPanels,
		MaxBatchSize:             cfg.Batch.MaxSize,
		SupportedGrafanaVersions: []string{"7.0.0", "8.0.0", "9.0.0", "10.0.0"},
		SupportedKibanaVersions:  []string{"7.0.0", "8.0.0", "8.11.0"},
	}

	s.mu.Lock()
	s.defaults = defaults
	s.limits = limits
	s.batchWorkers = cfg.Batch.Workers
	s.mu.Unlock()

	s.logger.Info("Conversion defaults applied",
		"target_version", defaults.TargetVersion,
		"index_patterns", len(defaults.IndexPatternMapping),
		"max_batch_size", limits.MaxBatchSize,
		"batch_workers", cfg.Batch.Workers,
	)
}

// DefaultsFromConfig builds the option baseline that request payloads are
// overlaid on.
func DefaultsFromConfig(c config.ConversionConfig) models.ConversionOptions {
	o := models.DefaultConversionOptions()
	if c.TargetVersion != "" {
		o.TargetVersion = c.TargetVersion
	}
	o.PreservePanelIDs = c.PreservePanelIDs
	o.ConvertQueries = c.ConvertQueries
	o.ConvertVisualizations = c.ConvertVisualizations
	if len(c.IndexPatternMapping) > 0 {
		o.IndexPatternMapping = make(map[string]string, len(c.IndexPatternMapping))
		for k, v := range c.IndexPatternMapping {
			o.IndexPatternMapping[k] = v
		}
	}
	return o
}

// Defaults returns a copy of the current option baseline.
func (s *ConversionService) Defaults() models.ConversionOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults.Clone()
}

func (s *ConversionService) currentLimits() (models.Limits, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits, s.batchWorkers
}

// ParseOptions overlays a request payload on the current defaults.
func (s *ConversionService) ParseOptions(raw map[string]interface{}) (models.ConversionOptions, error) {
	opts, err := models.ParseConversionOptions(s.Defaults(), raw)
	if err != nil {
		return opts, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return opts, nil
}

// DecodeDashboard checks the raw document shape and decodes it.
func DecodeDashboard(raw []byte) (*models.GrafanaDashboard, error) {
	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if !converter.Validate(doc) {
		return nil, ErrInvalidDashboard
	}
	d, err := models.DecodeGrafanaDashboard(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDashboard, err)
	}
	return d, nil
}

// Convert runs one conversion synchronously. A failed conversion is not an
// error: it comes back as a failed result. Errors are reserved for bad input
// and for persistence or artifact failures.
func (s *ConversionService) Convert(ctx context.Context, raw []byte, rawOpts map[string]interface{}) (*ConvertOutcome, error) {
	d, err := DecodeDashboard(raw)
	if err != nil {
		return nil, err
	}
	opts, err := s.ParseOptions(rawOpts)
	if err != nil {
		return nil, err
	}
	return s.ConvertDashboard(ctx, d, opts)
}

// ConvertDashboard is Convert for an already decoded dashboard.
func (s *ConversionService) ConvertDashboard(ctx context.Context, d *models.GrafanaDashboard, opts models.ConversionOptions) (*ConvertOutcome, error) {
	jobID := s.newID()
	s.setProgress(ctx, jobID, 0, ProgressStarting)

	s.activeConversions.Add(1)
	metrics.ActiveJobs.Inc()
	defer func() {
		s.activeConversions.Add(-1)
		metrics.ActiveJobs.Dec()
	}()

	ctx, span := s.tracer.StartConversionSpan(ctx, jobID, d.Title, len(d.Panels))
	defer span.End()

	start := time.Now()
	res := s.converter.Convert(ctx, d, opts, func(done, total int, message string) {
		if total <= 0 {
			return
		}
		s.setProgress(ctx, jobID, done*100/total, message)
	})
	elapsed := time.Since(start)

	s.recordConversion(d, res, elapsed)
	s.tracer.RecordConversionMetrics(span, elapsed, kibanaPanelCount(res), res.Status == models.StatusCompleted)

	out := &ConvertOutcome{
		Result:       res,
		JobID:        jobID,
		Summary:      converter.Summarize(d),
		KibanaPanels: kibanaPanelCount(res),
	}

	if res.Status == models.StatusCompleted && s.artifacts != nil {
		if err := s.artifacts.Write(res.ID, res.KibanaDashboard); err != nil {
			s.tracer.RecordError(span, err)
			s.setProgress(ctx, jobID, 100, "Failed: "+err.Error())
			return nil, fmt.Errorf("write artifacts for %s: %w", res.ID, err)
		}
		out.FileID = res.ID
	}

	if err := s.save(ctx, &res); err != nil {
		if out.FileID != "" {
			if rerr := s.artifacts.Remove(out.FileID); rerr != nil {
				s.logger.Warn("Failed to remove artifacts of unsaved conversion", "conversion_id", res.ID, "error", rerr)
			}
		}
		s.tracer.RecordError(span, err)
		s.setProgress(ctx, jobID, 100, "Failed: "+err.Error())
		return nil, err
	}

	if res.Status == models.StatusCompleted {
		s.setProgress(ctx, jobID, 100, ProgressCompleted)
	} else {
		s.setProgress(ctx, jobID, 100, "Failed: "+failureMessage(res))
	}

	s.logger.Info("Dashboard conversion finished",
		"conversion_id", res.ID,
		"job_id", jobID,
		"status", res.Status,
		"title", d.Title,
		"elapsed_ms", res.ConversionTimeMs,
	)
	return out, nil
}

func (s *ConversionService) save(ctx context.Context, res *models.ConversionResult) error {
	ctx, span := s.tracer.StartStoreSpan(ctx, "save_conversion", res.ID)
	defer span.End()
	if err := s.store.SaveConversion(ctx, res); err != nil {
		s.tracer.RecordError(span, err)
		return fmt.Errorf("save conversion %s: %w", res.ID, err)
	}
	return nil
}

func (s *ConversionService) recordConversion(d *models.GrafanaDashboard, res models.ConversionResult, elapsed time.Duration) {
	metrics.ConversionsTotal.WithLabelValues(string(res.Status)).Inc()
	metrics.ConversionDuration.Observe(elapsed.Seconds())
	if d == nil {
		return
	}
	for _, p := range d.Panels {
		t := p.Type
		if t == "" {
			t = "unknown"
		}
		metrics.PanelsConverted.WithLabelValues(t).Inc()
	}
}

func kibanaPanelCount(res models.ConversionResult) int {
	if res.KibanaDashboard == nil {
		return 0
	}
	var panels []json.RawMessage
	if err := json.Unmarshal([]byte(res.KibanaDashboard.Attributes.PanelsJSON), &panels); err != nil {
		return 0
	}
	return len(panels)
}

func failureMessage(res models.ConversionResult) string {
	if res.ErrorMessage == "" {
		return "Unknown error"
	}
	return res.ErrorMessage
}

// setProgress is best effort: a progress write failure never fails the job.
func (s *ConversionService) setProgress(ctx context.Context, jobID string, pct int, status string) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p := models.Progress{JobID: jobID, Progress: pct, Status: status, UpdatedAt: time.Now().UTC()}
	if err := s.store.SetProgress(context.WithoutCancel(ctx), p); err != nil {
		s.logger.Warn("Failed to record job progress", "job_id", jobID, "error", err)
	}
}

func (s *ConversionService) Get(ctx context.Context, id string) (*models.ConversionResult, error) {
	return s.store.GetConversion(ctx, id)
}

func (s *ConversionService) List(ctx context.Context, limit int) ([]models.ConversionResult, error) {
	return s.store.ListConversions(ctx, limit)
}

// Delete removes the record and any artifacts written for it.
func (s *ConversionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteConversion(ctx, id); err != nil {
		return err
	}
	if s.artifacts != nil {
		if err := s.artifacts.Remove(id); err != nil && !errors.Is(err, artifacts.ErrInvalidFileID) {
			s.logger.Warn("Failed to remove conversion artifacts", "conversion_id", id, "error", err)
		}
	}
	return nil
}

// StartBatch records a pending batch and converts it in the background. The
// returned snapshot is what clients poll against with GetBatch; the batch id
// doubles as the progress job id.
func (s *ConversionService) StartBatch(ctx context.Context, docs []json.RawMessage, rawOpts map[string]interface{}) (*models.BatchResult, error) {
	limits, workers := s.currentLimits()
	if limits.MaxBatchSize > 0 && len(docs) > limits.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d dashboards, limit %d", ErrBatchTooLarge, len(docs), limits.MaxBatchSize)
	}
	opts, err := s.ParseOptions(rawOpts)
	if err != nil {
		return nil, err
	}

	pending := &models.BatchResult{
		BatchID:         s.newID(),
		Status:          models.StatusPending,
		TotalDashboards: len(docs),
		Conversions:     []models.ConversionResult{},
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.SaveBatch(ctx, pending); err != nil {
		return nil, fmt.Errorf("save batch %s: %w", pending.BatchID, err)
	}
	s.setProgress(ctx, pending.BatchID, 0, "Starting batch conversion...")

	metrics.BatchesTotal.Inc()
	metrics.BatchSize.Observe(float64(len(docs)))

	s.wg.Add(1)
	go s.runBatch(pending.BatchID, pending.CreatedAt, docs, opts, workers)

	snapshot := *pending
	return &snapshot, nil
}

func (s *ConversionService) runBatch(batchID string, createdAt time.Time, docs []json.RawMessage, opts models.ConversionOptions, workers int) {
	defer s.wg.Done()

	s.activeBatches.Add(1)
	metrics.ActiveJobs.Inc()
	defer func() {
		s.activeBatches.Add(-1)
		metrics.ActiveJobs.Dec()
	}()

	ctx, span := s.tracer.StartBatchSpan(s.baseCtx, batchID, len(docs))
	defer span.End()

	if processing, err := s.store.GetBatch(ctx, batchID); err == nil {
		processing.Status = models.StatusProcessing
		if err := s.store.SaveBatch(ctx, processing); err != nil {
			s.logger.Warn("Failed to mark batch processing", "batch_id", batchID, "error", err)
		}
	}

	res := s.converter.ConvertBatch(ctx, batchID, docs, opts, workers, func(done, total int, last models.ConversionResult) {
		metrics.ConversionsTotal.WithLabelValues(string(last.Status)).Inc()
		s.setProgress(ctx, batchID, done*100/total, fmt.Sprintf("Converted %d of %d dashboards", done, total))
	})
	res.CreatedAt = createdAt

	for i := range res.Conversions {
		if err := s.save(ctx, &res.Conversions[i]); err != nil {
			s.logger.Warn("Failed to store batch conversion", "batch_id", batchID, "conversion_id", res.Conversions[i].ID, "error", err)
		}
	}

	if err := s.store.SaveBatch(ctx, &res); err != nil {
		s.tracer.RecordError(span, err)
		s.logger.Error("Failed to store batch result", "batch_id", batchID, "error", err)
	}
	s.setProgress(ctx, batchID, 100, fmt.Sprintf("Batch completed: %d succeeded, %d failed", res.Completed, res.Failed))
	s.logger.Info("Batch conversion stored", "batch_id", batchID, "completed", res.Completed, "failed", res.Failed)
}

func (s *ConversionService) GetBatch(ctx context.Context, id string) (*models.BatchResult, error) {
	return s.store.GetBatch(ctx, id)
}

func (s *ConversionService) DeleteBatch(ctx context.Context, id string) error {
	return s.store.DeleteBatch(ctx, id)
}

// Status counts in-flight work and stored conversions.
func (s *ConversionService) Status(ctx context.Context) (*models.ServiceStatus, error) {
	total, err := s.store.CountConversions(ctx)
	if err != nil {
		return nil, fmt.Errorf("count conversions: %w", err)
	}
	return &models.ServiceStatus{
		Service:           "grafana-to-kibana-converter",
		Version:           monitoring.Version,
		Status:            "healthy",
		UptimeSeconds:     time.Since(s.started).Seconds(),
		ActiveConversions: int(s.activeConversions.Load()),
		TotalConversions:  total,
		ActiveBatches:     int(s.activeBatches.Load()),
		EnrichmentEnabled: s.converter.HasEnricher(),
	}, nil
}

// Validate is a dry run: nothing is converted or stored.
func (s *ConversionService) Validate(raw []byte) models.ValidationReport {
	return converter.Inspect(raw)
}

func (s *ConversionService) Capabilities() models.Capabilities {
	limits, _ := s.currentLimits()
	return models.Capabilities{
		SupportedPanelTypes:  converter.SupportedPanelTypes(),
		SupportedDatasources: converter.SupportedDatasources(),
		Features: map[string]bool{
			"batch_processing":     true,
			"real_time_conversion": true,
			"validation":           true,
			"conversion_summary":   true,
			"progress_streaming":   true,
			"ndjson_export":        s.artifacts != nil,
			"ai_enrichment":        s.converter.HasEnricher(),
		},
		Limits: limits,
	}
}

// Progress returns the last reported state of a job. Unknown jobs report
// zero progress rather than an error.
func (s *ConversionService) Progress(ctx context.Context, jobID string) (models.Progress, error) {
	p, err := s.store.GetProgress(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Progress{JobID: jobID, Progress: 0, Status: ProgressNotFound}, nil
	}
	if err != nil {
		return models.Progress{}, err
	}
	return *p, nil
}

// Artifact opens a stored rendition for download along with its attachment
// name. The caller closes the reader.
func (s *ConversionService) Artifact(fileID, format string) (io.ReadCloser, string, error) {
	if s.artifacts == nil {
		return nil, "", artifacts.ErrNotFound
	}
	f, err := artifacts.ParseFormat(format)
	if err != nil {
		return nil, "", err
	}
	rc, err := s.artifacts.Open(fileID, f)
	if err != nil {
		return nil, "", err
	}
	return rc, artifacts.DownloadName(fileID, f), nil
}

// Shutdown waits for running batches until ctx expires, then cancels
// whatever is left.
func (s *ConversionService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
