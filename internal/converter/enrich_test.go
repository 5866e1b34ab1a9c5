package converter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashbridge/internal/models"
)

type translateCall struct {
	query, src, dst string
}

type fakeEnricher struct {
	mu         sync.Mutex
	vis        string
	visErr     error
	queries    map[string]string
	queryErr   error
	panicOnVis bool
	block      bool

	suggestCalls   int
	translateCalls []translateCall
}

func (f *fakeEnricher) SuggestType(ctx context.Context, _ models.SourcePanel) (string, error) {
	f.mu.Lock()
	f.suggestCalls++
	f.mu.Unlock()
	if f.panicOnVis {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.vis, f.visErr
}

func (f *fakeEnricher) TranslateQuery(_ context.Context, query, src, dst string) (string, error) {
	f.mu.Lock()
	f.translateCalls = append(f.translateCalls, translateCall{query, src, dst})
	f.mu.Unlock()
	if f.queryErr != nil {
		return "", f.queryErr
	}
	return f.queries[query], nil
}

func graphPanel() models.SourcePanel {
	return models.SourcePanel{
		Type:       "graph",
		Title:      "requests",
		Datasource: models.PlainDatasource("prometheus"),
		Targets: []models.Target{
			{RefID: "A", Expr: "up"},
			{RefID: "B", Expr: "down", Datasource: &models.DatasourceRef{Name: "loki"}},
			{RefID: "C"},
		},
	}
}

func TestEnrich_AppliesHints(t *testing.T) {
	f := &fakeEnricher{
		vis:     " area ",
		queries: map[string]string{"up": "status:up", "down": "status:down"},
	}
	c := newTestConverter(WithEnricher(f))
	opts := models.DefaultConversionOptions()
	opts.IndexPatternMapping = map[string]string{"prometheus": "metrics-*"}

	kp := c.TransformPanel(context.Background(), graphPanel(), opts)
	require.NotNil(t, kp)
	assert.True(t, kp.AIConverted)
	assert.Equal(t, CategoryVisualization, kp.Type)
	assert.Equal(t, "area", kp.EmbeddableConfig.Vis.Type)
	assert.Equal(t, "(status:up) OR (status:down)", kp.EmbeddableConfig.SearchSource.Query.Query)
	assert.Equal(t, QueryLanguage, kp.EmbeddableConfig.SearchSource.Query.Language)

	require.Len(t, f.translateCalls, 2)
	assert.Equal(t, translateCall{"up", "prometheus", "metrics-*"}, f.translateCalls[0])
	assert.Equal(t, translateCall{"down", "loki", defaultTargetDatasource}, f.translateCalls[1])
}

func TestEnrich_SingleTranslationUsedVerbatim(t *testing.T) {
	f := &fakeEnricher{queries: map[string]string{"up": "status:up"}}
	c := newTestConverter(WithEnricher(f))
	kp := c.TransformPanel(context.Background(), graphPanel(), models.DefaultConversionOptions())
	assert.Equal(t, "status:up", kp.EmbeddableConfig.SearchSource.Query.Query)
	assert.Equal(t, "line", kp.EmbeddableConfig.Vis.Type)
	assert.True(t, kp.AIConverted)
}

func TestEnrich_SuggestionCreatesVisBlock(t *testing.T) {
	c := newTestConverter(WithEnricher(&fakeEnricher{vis: "table"}))
	kp := c.TransformPanel(context.Background(), models.SourcePanel{Type: "logs"}, models.DefaultConversionOptions())
	require.NotNil(t, kp.EmbeddableConfig.Vis)
	assert.Equal(t, "table", kp.EmbeddableConfig.Vis.Type)
	assert.True(t, kp.AIConverted)
}

func TestEnrich_FailuresFallBackToStatic(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeEnricher
	}{
		{"errors", &fakeEnricher{visErr: errors.New("rate limited"), queryErr: errors.New("rate limited")}},
		{"panic", &fakeEnricher{panicOnVis: true}},
		{"empty hints", &fakeEnricher{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConverter(WithEnricher(tt.f))
			kp := c.TransformPanel(context.Background(), graphPanel(), models.DefaultConversionOptions())
			require.NotNil(t, kp)
			assert.False(t, kp.AIConverted)
			assert.Equal(t, "line", kp.EmbeddableConfig.Vis.Type)
			assert.Equal(t, "", kp.EmbeddableConfig.SearchSource.Query.Query)
		})
	}
}

func TestEnrich_TimeoutDoesNotFailConversion(t *testing.T) {
	f := &fakeEnricher{block: true}
	c := newTestConverter(WithEnricher(f), WithEnrichTimeout(20*time.Millisecond))
	res := c.Convert(context.Background(), mustDashboard(t, `{"title":"x","panels":[{"type":"stat"}]}`), models.DefaultConversionOptions(), nil)
	require.Equal(t, models.StatusCompleted, res.Status)
	panels := decodePanels(t, res.KibanaDashboard)
	require.Len(t, panels, 1)
	assert.False(t, panels[0].AIConverted)
	assert.Equal(t, "metric", panels[0].EmbeddableConfig.Vis.Type)
}

func TestEnrich_RespectsOptionFlags(t *testing.T) {
	f := &fakeEnricher{vis: "bar", queries: map[string]string{"up": "status:up"}}
	c := newTestConverter(WithEnricher(f))
	opts := models.DefaultConversionOptions()
	opts.ConvertVisualizations = false
	opts.ConvertQueries = false

	kp := c.TransformPanel(context.Background(), graphPanel(), opts)
	assert.False(t, kp.AIConverted)
	assert.Equal(t, 0, f.suggestCalls)
	assert.Empty(t, f.translateCalls)
}

func TestEnrich_DroppedPanelsNeverConsulted(t *testing.T) {
	f := &fakeEnricher{vis: "bar"}
	c := newTestConverter(WithEnricher(f))
	assert.Nil(t, c.TransformPanel(context.Background(), models.SourcePanel{Type: "row"}, models.DefaultConversionOptions()))
	assert.Equal(t, 0, f.suggestCalls)
}

func TestJoinQueries(t *testing.T) {
	assert.Equal(t, "", joinQueries(nil))
	assert.Equal(t, "a:1", joinQueries([]string{"a:1"}))
	assert.Equal(t, "(a:1) OR (b:2) OR (c:3)", joinQueries([]string{"a:1", "b:2", "c:3"}))
}
