package converter

import (
	"context"

	"github.com/platformbuilds/dashbridge/internal/models"
)

const (
	DefaultPanelTitle = "Untitled Panel"
	panelVersion      = "8.0.0"

	defaultGridX = 0
	defaultGridY = 0
	defaultGridW = 12
	defaultGridH = 8
)

// TransformPanel converts one source panel. It returns nil for panels whose
// category is CategoryContainer; callers skip those.
func (c *Converter) TransformPanel(ctx context.Context, p models.SourcePanel, opts models.ConversionOptions) *models.KibanaPanel {
	panelType := p.Type
	if panelType == "" {
		panelType = defaultPanelType
	}
	category := PanelCategory(panelType)
	if category == CategoryContainer {
		return nil
	}

	id := c.resolvePanelID(p, opts)
	grid := gridData(p.GridPos, id)

	out := &models.KibanaPanel{
		Type:             category,
		ID:               id,
		PanelIndex:       grid.H,
		GridData:         grid,
		Version:          panelVersion,
		EmbeddableConfig: embeddableConfig(p),
		Title:            p.Title,
		SavedObjectID:    c.newID(),
	}
	if out.Title == "" {
		out.Title = DefaultPanelTitle
	}

	out.AIConverted = c.enrich(ctx, p, out, opts)
	return out
}

func (c *Converter) resolvePanelID(p models.SourcePanel, opts models.ConversionOptions) string {
	if opts.PreservePanelIDs && p.ID != nil {
		return p.ID.Value
	}
	return c.newID()
}

func gridData(pos *models.GridPos, id string) models.GridData {
	g := models.GridData{X: defaultGridX, Y: defaultGridY, W: defaultGridW, H: defaultGridH, I: id}
	if pos == nil {
		return g
	}
	if pos.X != nil {
		g.X = *pos.X
	}
	if pos.Y != nil {
		g.Y = *pos.Y
	}
	if pos.W != nil {
		g.W = *pos.W
	}
	if pos.H != nil {
		g.H = *pos.H
	}
	return g
}

// embeddableConfig looks at the raw source type: a panel without a type gets
// no vis block even though it is treated as a graph for categorisation.
func embeddableConfig(p models.SourcePanel) models.EmbeddableConfig {
	var cfg models.EmbeddableConfig
	if _, ok := visSourceTypes[p.Type]; ok {
		cfg.Vis = &models.VisConfig{
			Type:   VisualizationSubtype(p.Type),
			Params: visParams(p.FieldConfig),
		}
	}
	if p.HasTargets() {
		cfg.SearchSource = &models.SearchSource{Query: BuildQuery(p.Targets)}
	}
	return cfg
}

func visParams(fc *models.FieldConfig) models.VisParams {
	if fc == nil || fc.Defaults == nil {
		return models.VisParams{}
	}
	return models.VisParams{
		Type: "metric",
		Metric: &models.MetricParams{
			PercentageMode:      fc.Defaults.Unit == "percent",
			UseRanges:           true,
			ColorSchema:         "Green to Red",
			MetricColorMode:     "Labels",
			NumberFormat:        "number",
			ColorFullBackground: false,
		},
	}
}
