package converter

import (
	"context"
	"fmt"
	"strings"

	"github.com/platformbuilds/dashbridge/internal/models"
)

// Enricher suggests improvements beyond the static mapping. An empty string
// with a nil error means "no hint". Errors never fail a conversion.
type Enricher interface {
	SuggestType(ctx context.Context, panel models.SourcePanel) (string, error)
	TranslateQuery(ctx context.Context, query, sourceDatasource, targetDatasource string) (string, error)
}

// defaultTargetDatasource is used when no index pattern is mapped for the
// panel's datasource.
const defaultTargetDatasource = "elasticsearch"

// enrich applies hints to out and reports whether anything changed.
func (c *Converter) enrich(ctx context.Context, p models.SourcePanel, out *models.KibanaPanel, opts models.ConversionOptions) bool {
	if c.enricher == nil {
		return false
	}
	applied := false

	if opts.ConvertVisualizations {
		var suggestion string
		err := c.guard(ctx, func(cctx context.Context) (err error) {
			suggestion, err = c.enricher.SuggestType(cctx, p)
			return err
		})
		suggestion = strings.TrimSpace(suggestion)
		switch {
		case err != nil:
			c.logger.Warn("visualization suggestion failed", "panel", p.Title, "error", err)
		case suggestion != "":
			if out.EmbeddableConfig.Vis == nil {
				out.EmbeddableConfig.Vis = &models.VisConfig{}
			}
			out.EmbeddableConfig.Vis.Type = suggestion
			applied = true
		}
	}

	if opts.ConvertQueries && out.EmbeddableConfig.SearchSource != nil && len(p.Targets) > 0 {
		var translated []string
		for _, t := range p.Targets {
			q := t.QueryText()
			if q == "" {
				continue
			}
			src := t.Datasource.DisplayName()
			if src == "" {
				src = p.Datasource.DisplayName()
			}
			dst := defaultTargetDatasource
			if idx, ok := opts.IndexPatternMapping[src]; ok && idx != "" {
				dst = idx
			}

			var tq string
			err := c.guard(ctx, func(cctx context.Context) (err error) {
				tq, err = c.enricher.TranslateQuery(cctx, q, src, dst)
				return err
			})
			if err != nil {
				c.logger.Warn("query translation failed", "panel", p.Title, "ref_id", t.RefID, "error", err)
				continue
			}
			if tq = strings.TrimSpace(tq); tq != "" {
				translated = append(translated, tq)
			}
		}
		if q := joinQueries(translated); q != "" {
			out.EmbeddableConfig.SearchSource.Query.Query = q
			applied = true
		}
	}

	return applied
}

// guard runs one enrichment call under the per-call timeout and converts a
// panic into an error.
func (c *Converter) guard(ctx context.Context, call func(context.Context) error) (err error) {
	cctx := ctx
	if c.enrichTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, c.enrichTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enricher panicked: %v", r)
		}
	}()
	return call(cctx)
}

// joinQueries ORs translated target queries together. A single query is
// used verbatim.
func joinQueries(qs []string) string {
	switch len(qs) {
	case 0:
		return ""
	case 1:
		return qs[0]
	}
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = "(" + q + ")"
	}
	return strings.Join(parts, " OR ")
}
