package converter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashbridge/internal/models"
)

func TestToNDJSON_RoundTrip(t *testing.T) {
	c := newTestConverter()
	d := mustDashboard(t, `{"title":"nd","panels":[{"id":3,"type":"graph","title":"p95 > 2s","targets":[{"expr":"x"}]}]}`)
	kd, err := c.Assemble(context.Background(), d, models.DefaultConversionOptions(), nil)
	require.NoError(t, err)

	line, err := ToNDJSON(kd)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Equal(t, 1, strings.Count(line, "\n"))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &doc))
	assert.Equal(t, kd.ID, doc["id"])

	attrs := doc["attributes"].(map[string]interface{})
	for _, key := range []string{"panelsJSON", "optionsJSON"} {
		s, ok := attrs[key].(string)
		require.True(t, ok, key)
		assert.True(t, json.Valid([]byte(s)), key)
	}
	meta := attrs["kibanaSavedObjectMeta"].(map[string]interface{})
	assert.True(t, json.Valid([]byte(meta["searchSourceJSON"].(string))))
	assert.Contains(t, attrs["panelsJSON"], "p95 > 2s")
	assert.Contains(t, attrs["kibanaSavedObjectMeta"].(map[string]interface{})["searchSourceJSON"], "2147483647")
}

func TestToNDJSON_DropsEmptyID(t *testing.T) {
	c := newTestConverter()
	kd, err := c.Assemble(context.Background(), mustDashboard(t, `{"title":"x","panels":[]}`), models.DefaultConversionOptions(), nil)
	require.NoError(t, err)
	kd.ID = ""

	line, err := ToNDJSON(kd)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &doc))
	_, present := doc["id"]
	assert.False(t, present)
}

func TestToNDJSON_DoesNotMutateInput(t *testing.T) {
	kd := &models.KibanaDashboard{
		ID:   "d1",
		Type: "dashboard",
		Attributes: models.KibanaAttributes{
			PanelsJSON:  `[ {"a": 1} ]`,
			OptionsJSON: `{}`,
			KibanaSavedObjectMeta: models.KibanaSavedObjectMeta{
				SearchSourceJSON: `{}`,
			},
		},
	}
	_, err := ToNDJSON(kd)
	require.NoError(t, err)
	assert.Equal(t, `[ {"a": 1} ]`, kd.Attributes.PanelsJSON)
}

func TestToNDJSON_LiteralFallback(t *testing.T) {
	kd := &models.KibanaDashboard{
		ID:   "d1",
		Type: "dashboard",
		Attributes: models.KibanaAttributes{
			Title:       "legacy",
			PanelsJSON:  `[{'type': 'visualization', 'aiConverted': False, 'title': None, 'gridData': {'h': 8}}]`,
			OptionsJSON: `{'useMargins': True}`,
			KibanaSavedObjectMeta: models.KibanaSavedObjectMeta{
				SearchSourceJSON: `{"query":{"query":"","language":"kuery"}}`,
			},
		},
	}

	line, err := ToNDJSON(kd)
	require.NoError(t, err)

	var doc struct {
		Attributes models.KibanaAttributes `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal([]byte(line), &doc))
	assert.JSONEq(t, `[{"type":"visualization","aiConverted":false,"title":null,"gridData":{"h":8}}]`, doc.Attributes.PanelsJSON)
	assert.JSONEq(t, `{"useMargins":true}`, doc.Attributes.OptionsJSON)
}

func TestToNDJSON_LiteralFallbackKeepsQuotedKeywords(t *testing.T) {
	kd := &models.KibanaDashboard{
		ID:   "d2",
		Type: "dashboard",
		Attributes: models.KibanaAttributes{
			Title:       "legacy",
			PanelsJSON:  `[{'title': 'None', 'desc': "True", 'hidden': False, 'ref': None}]`,
			OptionsJSON: `{}`,
			KibanaSavedObjectMeta: models.KibanaSavedObjectMeta{
				SearchSourceJSON: `{}`,
			},
		},
	}

	line, err := ToNDJSON(kd)
	require.NoError(t, err)

	var doc struct {
		Attributes models.KibanaAttributes `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal([]byte(line), &doc))
	assert.JSONEq(t, `[{"title":"None","desc":"True","hidden":false,"ref":null}]`, doc.Attributes.PanelsJSON)
}

func TestToNDJSON_RejectsGarbage(t *testing.T) {
	kd := &models.KibanaDashboard{
		Type:       "dashboard",
		Attributes: models.KibanaAttributes{PanelsJSON: "definitely not json", OptionsJSON: "{}"},
	}
	_, err := ToNDJSON(kd)
	assert.Error(t, err)

	_, err = ToNDJSON(nil)
	assert.Error(t, err)
}
