package converter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/platformbuilds/dashbridge/internal/models"
)

const (
	// InvalidStructureMessage is reported when title or panels is missing.
	InvalidStructureMessage = "Invalid dashboard structure"

	largeDashboardPanels = 50
	unknownPanelType     = "unknown"
)

// Validate reports whether raw has a title and an array-valued panels field.
// Panel contents are not inspected.
func Validate(raw map[string]interface{}) bool {
	if raw == nil {
		return false
	}
	if _, ok := raw["title"]; !ok {
		return false
	}
	panels, ok := raw["panels"]
	if !ok {
		return false
	}
	_, isList := panels.([]interface{})
	return isList
}

// Summarize counts panel types and collects the datasources referenced by
// panel targets.
func Summarize(d *models.GrafanaDashboard) models.ConversionSummary {
	s := models.ConversionSummary{
		PanelTypes:  map[string]int{},
		Datasources: []string{},
	}
	if d == nil {
		return s
	}
	s.TotalPanels = len(d.Panels)
	s.Variables = d.Templating.Len()
	s.Annotations = d.Annotations.Len()

	seen := map[string]struct{}{}
	for _, p := range d.Panels {
		t := p.Type
		if t == "" {
			t = unknownPanelType
		}
		s.PanelTypes[t]++
		if IsSupportedPanelType(t) {
			s.SupportedPanels++
		} else {
			s.UnsupportedPanels++
		}
		for _, target := range p.Targets {
			if name := target.Datasource.DisplayName(); name != "" {
				seen[name] = struct{}{}
			}
		}
	}
	for name := range seen {
		s.Datasources = append(s.Datasources, name)
	}
	sort.Strings(s.Datasources)
	return s
}

// Warnings derives user-facing caveats from a summary.
func Warnings(s models.ConversionSummary) []string {
	var out []string
	if s.UnsupportedPanels > 0 {
		out = append(out, fmt.Sprintf("%d unsupported panel types will be skipped", s.UnsupportedPanels))
	}
	if s.TotalPanels > largeDashboardPanels {
		out = append(out, "Large number of panels may affect conversion performance")
	}
	if len(s.Datasources) == 0 {
		out = append(out, "No datasources detected - queries may need manual configuration")
	}
	return out
}

// Inspect validates a raw document without converting it. It never returns
// an error; problems are listed in the report.
func Inspect(data []byte) models.ValidationReport {
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return models.ValidationReport{Valid: false, Errors: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}
	if !Validate(raw) {
		return models.ValidationReport{Valid: false, Errors: []string{InvalidStructureMessage}}
	}
	d, err := models.DecodeGrafanaDashboard(data)
	if err != nil {
		return models.ValidationReport{Valid: false, Errors: []string{err.Error()}}
	}
	summary := Summarize(d)
	return models.ValidationReport{
		Valid:    true,
		Summary:  &summary,
		Warnings: Warnings(summary),
	}
}
