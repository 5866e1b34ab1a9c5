// Package store persists conversion records, batch records and job progress.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/platformbuilds/dashbridge/internal/models"
)

// ErrNotFound is returned (possibly wrapped) when a record does not exist.
var ErrNotFound = errors.New("record not found")

type ConversionStore interface {
	SaveConversion(ctx context.Context, rec *models.ConversionResult) error
	GetConversion(ctx context.Context, id string) (*models.ConversionResult, error)
	DeleteConversion(ctx context.Context, id string) error
	// ListConversions returns records newest first. limit <= 0 means all.
	ListConversions(ctx context.Context, limit int) ([]models.ConversionResult, error)
	CountConversions(ctx context.Context) (int, error)

	SaveBatch(ctx context.Context, rec *models.BatchResult) error
	GetBatch(ctx context.Context, id string) (*models.BatchResult, error)
	DeleteBatch(ctx context.Context, id string) error
}

// ProgressStore tracks per-job progress for polling and streaming clients.
type ProgressStore interface {
	SetProgress(ctx context.Context, p models.Progress) error
	GetProgress(ctx context.Context, jobID string) (*models.Progress, error)
}

type Store interface {
	ConversionStore
	ProgressStore
	Close() error
}

func sortNewestFirst(recs []models.ConversionResult) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
