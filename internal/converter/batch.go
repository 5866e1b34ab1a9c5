package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/platformbuilds/dashbridge/internal/models"
)

const defaultBatchWorkers = 4

// BatchProgressFunc is called after each dashboard finishes. Calls are
// serialised.
type BatchProgressFunc func(done, total int, last models.ConversionResult)

// ConvertBatch converts raw dashboard documents concurrently with at most
// workers in flight. Results keep input order. A document that fails to
// decode or validate yields a failed result without affecting the others.
func (c *Converter) ConvertBatch(ctx context.Context, batchID string, docs []json.RawMessage, opts models.ConversionOptions, workers int, progress BatchProgressFunc) models.BatchResult {
	if batchID == "" {
		batchID = c.newID()
	}
	if workers <= 0 {
		workers = defaultBatchWorkers
	}

	res := models.BatchResult{
		BatchID:         batchID,
		Status:          models.StatusProcessing,
		TotalDashboards: len(docs),
		Conversions:     make([]models.ConversionResult, len(docs)),
		CreatedAt:       c.now().UTC(),
	}

	var (
		mu   sync.Mutex
		done int
	)
	var g errgroup.Group
	g.SetLimit(workers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			r := c.convertDocument(ctx, doc, opts)
			res.Conversions[i] = r

			mu.Lock()
			done++
			if progress != nil {
				progress(done, len(docs), r)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range res.Conversions {
		if r.Status == models.StatusCompleted {
			res.Completed++
		} else {
			res.Failed++
		}
	}
	finished := c.now().UTC()
	res.CompletedAt = &finished
	res.Status = models.StatusCompleted
	c.logger.Info("batch conversion finished", "batch_id", batchID, "total", res.TotalDashboards, "completed", res.Completed, "failed", res.Failed)
	return res
}

func (c *Converter) convertDocument(ctx context.Context, doc json.RawMessage, opts models.ConversionOptions) models.ConversionResult {
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return c.failedResult(fmt.Sprintf("invalid JSON: %v", err))
	}
	if !Validate(raw) {
		return c.failedResult(InvalidStructureMessage)
	}
	d, err := models.DecodeGrafanaDashboard(doc)
	if err != nil {
		return c.failedResult(err.Error())
	}
	return c.Convert(ctx, d, opts, nil)
}

func (c *Converter) failedResult(msg string) models.ConversionResult {
	now := c.now().UTC()
	return models.ConversionResult{
		ID:           c.newID(),
		Status:       models.StatusFailed,
		ErrorMessage: msg,
		CreatedAt:    now,
		CompletedAt:  &now,
	}
}
