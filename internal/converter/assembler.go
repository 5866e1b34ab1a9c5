package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/platformbuilds/dashbridge/internal/models"
)

const (
	savedObjectType      = "dashboard"
	migrationTag         = "8.0.0"
	savedObjectVersion   = "1"
	indexReferenceName   = "kibanaSavedObjectMeta.searchSourceJSON.index"
	indexReferenceType   = "index-pattern"
	highlightPreTag      = "@kibana-highlighted-field@"
	highlightPostTag     = "@/kibana-highlighted-field@"
	highlightFragmentMax = 2147483647
)

// Assemble builds the Kibana saved object. Panels keep source order and
// dropped panels leave no gap. progress, when set, fires once per source
// panel.
func (c *Converter) Assemble(ctx context.Context, d *models.GrafanaDashboard, opts models.ConversionOptions, progress ProgressFunc) (*models.KibanaDashboard, error) {
	if d == nil {
		return nil, fmt.Errorf("dashboard is required")
	}

	total := len(d.Panels)
	panels := make([]models.KibanaPanel, 0, total)
	for i, p := range d.Panels {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("conversion cancelled after %d of %d panels: %w", i, total, err)
		}
		kp := c.TransformPanel(ctx, p, opts)
		msg := fmt.Sprintf("Converted panel %d of %d", i+1, total)
		if kp == nil {
			msg = fmt.Sprintf("Skipped %s panel %d of %d", p.Type, i+1, total)
		} else {
			panels = append(panels, *kp)
		}
		if progress != nil {
			progress(i+1, total, msg)
		}
	}

	panelsJSON, err := marshalString(panels)
	if err != nil {
		return nil, fmt.Errorf("encode panels: %w", err)
	}
	optionsJSON, err := marshalString(dashboardOptions(d))
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	searchSourceJSON, err := marshalString(searchSourceMeta())
	if err != nil {
		return nil, fmt.Errorf("encode search source: %w", err)
	}

	targetVersion := opts.TargetVersion
	if targetVersion == "" {
		targetVersion = models.DefaultTargetVersion
	}
	stamp := c.now().UTC().Format(time.RFC3339)

	return &models.KibanaDashboard{
		ID:   c.newID(),
		Type: savedObjectType,
		Attributes: models.KibanaAttributes{
			Title:       d.Title,
			Hits:        0,
			Description: "",
			PanelsJSON:  panelsJSON,
			OptionsJSON: optionsJSON,
			Version:     1,
			TimeRestore: false,
			KibanaSavedObjectMeta: models.KibanaSavedObjectMeta{
				SearchSourceJSON: searchSourceJSON,
			},
		},
		References:           references(opts.IndexPatternMapping),
		MigrationVersion:     map[string]string{savedObjectType: migrationTag},
		CoreMigrationVersion: migrationTag,
		TypeMigrationVersion: targetVersion,
		CreatedAt:            stamp,
		UpdatedAt:            stamp,
		Version:              savedObjectVersion,
	}, nil
}

func dashboardOptions(d *models.GrafanaDashboard) models.DashboardOptions {
	hide := false
	if d.HideControls != nil {
		hide = *d.HideControls
	}
	return models.DashboardOptions{
		HidePanelTitles: hide,
		UseMargins:      true,
		SyncColors:      false,
		SyncCursor:      true,
		SyncTooltips:    false,
		HideAllLegends:  false,
	}
}

func searchSourceMeta() models.SearchSourceMeta {
	return models.SearchSourceMeta{
		Query:  models.KQLQuery{Query: "", Language: QueryLanguage},
		Filter: []interface{}{},
		Highlight: models.Highlight{
			PreTags:           []string{highlightPreTag},
			PostTags:          []string{highlightPostTag},
			Fields:            map[string]struct{}{"*": {}},
			RequireFieldMatch: false,
			FragmentSize:      highlightFragmentMax,
		},
	}
}

// references emits one entry per mapped datasource, ordered by datasource
// name. Every entry carries the same name, so dashboards mapping more than
// one datasource need manual review after import.
func references(mapping map[string]string) []models.Reference {
	refs := make([]models.Reference, 0, len(mapping))
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		refs = append(refs, models.Reference{
			Name: indexReferenceName,
			Type: indexReferenceType,
			ID:   mapping[k],
		})
	}
	return refs
}

// marshalString encodes v compactly without HTML escaping, so query text
// with < or > survives unchanged.
func marshalString(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
