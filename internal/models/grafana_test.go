package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGrafanaDashboard_PanelFields(t *testing.T) {
	doc := []byte(`{
		"title": "Node",
		"hideControls": true,
		"templating": {"list": [{"name": "host"}, {"name": "job"}]},
		"panels": [
			{"id": 7, "type": "graph", "title": "CPU", "gridPos": {"x": 3, "h": 10},
			 "targets": [{"expr": "rate(x[5m])", "refId": "A", "datasource": "prometheus"}],
			 "fieldConfig": {"defaults": {"unit": "percent"}}, "legend": {"show": true}},
			{"id": "abc", "type": "text"},
			{"type": "table", "targets": []}
		]
	}`)

	d, err := DecodeGrafanaDashboard(doc)
	require.NoError(t, err)
	require.Len(t, d.Panels, 3)
	assert.Equal(t, 2, d.Templating.Len())
	assert.Equal(t, 0, d.Annotations.Len())
	require.NotNil(t, d.HideControls)
	assert.True(t, *d.HideControls)

	p := d.Panels[0]
	require.NotNil(t, p.ID)
	assert.Equal(t, "7", p.ID.String())
	assert.True(t, p.ID.Numeric)
	require.NotNil(t, p.GridPos)
	assert.Equal(t, 3, *p.GridPos.X)
	assert.Nil(t, p.GridPos.Y)
	assert.Equal(t, 10, *p.GridPos.H)
	assert.Equal(t, "prometheus", p.Targets[0].Datasource.DisplayName())
	assert.Equal(t, "percent", p.FieldConfig.Defaults.Unit)
	assert.Contains(t, p.Extra, "legend")

	assert.Equal(t, "abc", d.Panels[1].ID.String())
	assert.False(t, d.Panels[1].ID.Numeric)
	assert.False(t, d.Panels[1].HasTargets())

	assert.Nil(t, d.Panels[2].ID)
	assert.True(t, d.Panels[2].HasTargets())
	assert.Empty(t, d.Panels[2].Targets)
}

func TestDecodeGrafanaDashboard_MissingPanels(t *testing.T) {
	d, err := DecodeGrafanaDashboard([]byte(`{"title":"x"}`))
	require.NoError(t, err)
	assert.NotNil(t, d.Panels)
	assert.Empty(t, d.Panels)

	_, err = DecodeGrafanaDashboard([]byte(`{"title":`))
	assert.Error(t, err)
}

func TestDatasourceRef_Forms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain string", `"loki"`, "loki"},
		{"object with name", `{"name":"prom-main","uid":"p1","type":"prometheus"}`, "prom-main"},
		{"object uid only", `{"uid":"p1","type":"prometheus"}`, "p1"},
		{"object type only", `{"type":"prometheus"}`, "prometheus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ref DatasourceRef
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ref))
			assert.Equal(t, tt.want, ref.DisplayName())

			out, err := json.Marshal(ref)
			require.NoError(t, err)
			assert.JSONEq(t, tt.in, string(out))
		})
	}

	var nilRef *DatasourceRef
	assert.Equal(t, "", nilRef.DisplayName())
}

func TestSourcePanel_RoundTripKeepsUnknownFields(t *testing.T) {
	in := `{"id":1,"type":"stat","options":{"reduceOptions":{"calcs":["last"]}},"targets":[]}`
	var p SourcePanel
	require.NoError(t, json.Unmarshal([]byte(in), &p))

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestSourcePanel_RoundTripKeepsTargetAndFieldConfigKeys(t *testing.T) {
	in := `{
		"id": 2, "type": "graph",
		"targets": [{"refId": "A", "expr": "up", "interval": "30s", "legendFormat": "{{instance}}", "hide": false}],
		"fieldConfig": {
			"defaults": {"unit": "percent", "thresholds": {"mode": "absolute", "steps": [{"color": "green", "value": null}]}},
			"overrides": [{"matcher": {"id": "byName", "options": "cpu"}, "properties": []}]
		}
	}`
	var p SourcePanel
	require.NoError(t, json.Unmarshal([]byte(in), &p))
	require.Len(t, p.Targets, 1)
	assert.Equal(t, "up", p.Targets[0].QueryText())
	assert.Equal(t, "percent", p.FieldConfig.Defaults.Unit)
	assert.JSONEq(t, `"30s"`, string(p.Targets[0].Extra["interval"]))

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestGridPos_TruncatesFractionalCoordinates(t *testing.T) {
	var p SourcePanel
	require.NoError(t, json.Unmarshal([]byte(`{"gridPos": {"x": 0, "w": 12.5, "h": 7.9}}`), &p))
	require.NotNil(t, p.GridPos)
	assert.Equal(t, 0, *p.GridPos.X)
	assert.Nil(t, p.GridPos.Y)
	assert.Equal(t, 12, *p.GridPos.W)
	assert.Equal(t, 7, *p.GridPos.H)

	err := json.Unmarshal([]byte(`{"gridPos": {"w": "wide"}}`), &p)
	assert.Error(t, err)
}

func TestPanelID_RejectsObjects(t *testing.T) {
	var p SourcePanel
	err := json.Unmarshal([]byte(`{"id":{"nested":true}}`), &p)
	assert.Error(t, err)
}

func TestPanelID_MarshalKeepsForm(t *testing.T) {
	b, err := json.Marshal(struct {
		A *PanelID `json:"a"`
		B *PanelID `json:"b"`
	}{A: NumericPanelID(4), B: StringPanelID("4")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":4,"b":"4"}`, string(b))

	var nilID *PanelID
	assert.Equal(t, "", nilID.String())
}
