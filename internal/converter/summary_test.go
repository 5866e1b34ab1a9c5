package converter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashbridge/internal/models"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"title and empty panels", `{"title":"a","panels":[]}`, true},
		{"panels contents ignored", `{"title":"a","panels":[1,"x",null]}`, true},
		{"null title still present", `{"title":null,"panels":[]}`, true},
		{"missing title", `{"panels":[]}`, false},
		{"missing panels", `{"title":"a"}`, false},
		{"panels is object", `{"title":"a","panels":{}}`, false},
		{"panels is null", `{"title":"a","panels":null}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &raw))
			assert.Equal(t, tt.want, Validate(raw))
		})
	}
	assert.False(t, Validate(nil))
}

func TestSummarize_Example(t *testing.T) {
	d := mustDashboard(t, `{"title":"s","panels":[{"type":"graph"},{"type":"unknown_type"}]}`)
	s := Summarize(d)
	assert.Equal(t, 2, s.TotalPanels)
	assert.Equal(t, 1, s.SupportedPanels)
	assert.Equal(t, 1, s.UnsupportedPanels)
	assert.Equal(t, map[string]int{"graph": 1, "unknown_type": 1}, s.PanelTypes)
	assert.Empty(t, s.Datasources)
}

func TestSummarize_DatasourcesAndCounts(t *testing.T) {
	d := mustDashboard(t, `{
		"title": "s",
		"templating": {"list": [{}, {}, {}]},
		"annotations": {"list": [{}]},
		"panels": [
			{"targets": [{"datasource": "prometheus"}, {"datasource": {"name": "prometheus"}}]},
			{"type": "table", "targets": [{"datasource": {"uid": "loki-uid", "type": "loki"}}, {"expr": "no ds"}]},
			{"type": "row"}
		]
	}`)
	s := Summarize(d)
	assert.Equal(t, []string{"loki-uid", "prometheus"}, s.Datasources)
	assert.Equal(t, map[string]int{"unknown": 1, "table": 1, "row": 1}, s.PanelTypes)
	assert.Equal(t, 2, s.SupportedPanels)
	assert.Equal(t, 1, s.UnsupportedPanels)
	assert.Equal(t, 3, s.Variables)
	assert.Equal(t, 1, s.Annotations)
}

func TestWarnings(t *testing.T) {
	s := models.ConversionSummary{UnsupportedPanels: 3, TotalPanels: 10, Datasources: []string{}}
	w := Warnings(s)
	require.Len(t, w, 2)
	assert.Equal(t, "3 unsupported panel types will be skipped", w[0])
	assert.Equal(t, "No datasources detected - queries may need manual configuration", w[1])

	s.TotalPanels = 60
	w = Warnings(s)
	require.Len(t, w, 3)
	assert.Equal(t, "Large number of panels may affect conversion performance", w[1])

	assert.Empty(t, Warnings(models.ConversionSummary{TotalPanels: 50, Datasources: []string{"prometheus"}}))
}

func TestInspect(t *testing.T) {
	r := Inspect([]byte(`{"title":"ok","panels":[{"type":"graph","targets":[{"datasource":"prometheus"}]}]}`))
	assert.True(t, r.Valid)
	require.NotNil(t, r.Summary)
	assert.Equal(t, 1, r.Summary.TotalPanels)
	assert.Empty(t, r.Warnings)

	r = Inspect([]byte(`{"panels":[]}`))
	assert.False(t, r.Valid)
	assert.Equal(t, []string{InvalidStructureMessage}, r.Errors)

	r = Inspect([]byte(`{"title":`))
	assert.False(t, r.Valid)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0], "invalid JSON")

	r = Inspect([]byte(`{"title":"x","panels":[{"id":{"bad":1}}]}`))
	assert.False(t, r.Valid)
	assert.Nil(t, r.Summary)
}
