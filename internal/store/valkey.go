package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platformbuilds/dashbridge/internal/models"
	"github.com/platformbuilds/dashbridge/pkg/cache"
)

const (
	conversionIndex = "conversions"
	batchIndex      = "batches"

	defaultProgressTTL = time.Hour
)

// ValkeyStore keeps records as JSON values in a cache.ValkeyCluster with a
// set index per record kind for listing.
type ValkeyStore struct {
	cache       cache.ValkeyCluster
	recordTTL   time.Duration
	progressTTL time.Duration
}

// NewValkeyStore returns a store over c. recordTTL <= 0 keeps records until
// deleted.
func NewValkeyStore(c cache.ValkeyCluster, recordTTL time.Duration) *ValkeyStore {
	if recordTTL < 0 {
		recordTTL = 0
	}
	return &ValkeyStore{cache: c, recordTTL: recordTTL, progressTTL: defaultProgressTTL}
}

func conversionKey(id string) string { return "conversion:" + id }
func batchKey(id string) string      { return "batch:" + id }
func progressKey(id string) string   { return "progress:" + id }

func (s *ValkeyStore) SaveConversion(ctx context.Context, rec *models.ConversionResult) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("conversion record requires an id")
	}
	if err := s.cache.Set(ctx, conversionKey(rec.ID), rec, s.recordTTL); err != nil {
		return fmt.Errorf("save conversion %s: %w", rec.ID, err)
	}
	if err := s.cache.AddToPatternIndex(ctx, conversionIndex, rec.ID); err != nil {
		return fmt.Errorf("index conversion %s: %w", rec.ID, err)
	}
	return nil
}

func (s *ValkeyStore) GetConversion(ctx context.Context, id string) (*models.ConversionResult, error) {
	var rec models.ConversionResult
	if err := s.getJSON(ctx, conversionKey(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *ValkeyStore) DeleteConversion(ctx context.Context, id string) error {
	if _, err := s.GetConversion(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, conversionKey(id)); err != nil {
		return fmt.Errorf("delete conversion %s: %w", id, err)
	}
	return s.cache.RemoveFromPatternIndex(ctx, conversionIndex, id)
}

func (s *ValkeyStore) ListConversions(ctx context.Context, limit int) ([]models.ConversionResult, error) {
	ids, err := s.cache.GetPatternIndexKeys(ctx, conversionIndex)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	out := make([]models.ConversionResult, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetConversion(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// expired; prune the dangling index entry
			_ = s.cache.RemoveFromPatternIndex(ctx, conversionIndex, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ValkeyStore) CountConversions(ctx context.Context) (int, error) {
	ids, err := s.cache.GetPatternIndexKeys(ctx, conversionIndex)
	if err != nil {
		return 0, fmt.Errorf("count conversions: %w", err)
	}
	return len(ids), nil
}

func (s *ValkeyStore) SaveBatch(ctx context.Context, rec *models.BatchResult) error {
	if rec == nil || rec.BatchID == "" {
		return fmt.Errorf("batch record requires an id")
	}
	if err := s.cache.Set(ctx, batchKey(rec.BatchID), rec, s.recordTTL); err != nil {
		return fmt.Errorf("save batch %s: %w", rec.BatchID, err)
	}
	return s.cache.AddToPatternIndex(ctx, batchIndex, rec.BatchID)
}

func (s *ValkeyStore) GetBatch(ctx context.Context, id string) (*models.BatchResult, error) {
	var rec models.BatchResult
	if err := s.getJSON(ctx, batchKey(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *ValkeyStore) DeleteBatch(ctx context.Context, id string) error {
	if _, err := s.GetBatch(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, batchKey(id)); err != nil {
		return fmt.Errorf("delete batch %s: %w", id, err)
	}
	return s.cache.RemoveFromPatternIndex(ctx, batchIndex, id)
}

func (s *ValkeyStore) SetProgress(ctx context.Context, p models.Progress) error {
	if p.JobID == "" {
		return fmt.Errorf("progress requires a job id")
	}
	if err := s.cache.Set(ctx, progressKey(p.JobID), p, s.progressTTL); err != nil {
		return fmt.Errorf("save progress %s: %w", p.JobID, err)
	}
	return nil
}

func (s *ValkeyStore) GetProgress(ctx context.Context, jobID string) (*models.Progress, error) {
	var p models.Progress
	if err := s.getJSON(ctx, progressKey(jobID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Close is a no-op; the cache client is owned by the caller.
func (s *ValkeyStore) Close() error { return nil }

func (s *ValkeyStore) getJSON(ctx context.Context, key string, dst interface{}) error {
	b, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
