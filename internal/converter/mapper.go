package converter

import "sort"

// Target categories. CategoryContainer marks layout rows, which have no
// Kibana counterpart and are dropped.
const (
	CategoryVisualization = "visualization"
	CategoryText          = "text"
	CategoryContainer     = "container"
)

const (
	defaultPanelType  = "graph"
	defaultVisSubtype = "line"
)

var panelCategories = map[string]string{
	"graph":      CategoryVisualization,
	"singlestat": CategoryVisualization,
	"stat":       CategoryVisualization,
	"table":      CategoryVisualization,
	"timeseries": CategoryVisualization,
	"heatmap":    CategoryVisualization,
	"piechart":   CategoryVisualization,
	"bargauge":   CategoryVisualization,
	"gauge":      CategoryVisualization,
	"text":       CategoryText,
	"row":        CategoryContainer,
	"alertlist":  CategoryVisualization,
	"dashlist":   CategoryVisualization,
	"logs":       CategoryVisualization,
	"nodeGraph":  CategoryVisualization,
	"traces":     CategoryVisualization,
}

var visSubtypes = map[string]string{
	"graph":      "line",
	"timeseries": "line",
	"stat":       "metric",
	"singlestat": "metric",
	"table":      "table",
	"heatmap":    "heatmap",
	"piechart":   "pie",
	"bargauge":   "gauge",
	"gauge":      "gauge",
}

// Informational only; nothing is rewritten through it.
var datasourceTargets = map[string]string{
	"prometheus":    "prometheus",
	"elasticsearch": "elasticsearch",
	"influxdb":      "influxdb",
	"mysql":         "mysql",
	"postgres":      "postgres",
	"graphite":      "graphite",
	"cloudwatch":    "cloudwatch",
	"azuremonitor":  "azuremonitor",
	"stackdriver":   "stackdriver",
}

// Kibana visualization subtypes an enrichment suggestion may name.
var knownVisSubtypes = map[string]struct{}{
	"line": {}, "area": {}, "bar": {}, "horizontal_bar": {}, "pie": {}, "donut": {},
	"table": {}, "metric": {}, "gauge": {}, "heatmap": {}, "histogram": {}, "scatter": {},
}

// vis blocks are only built for these source types.
var visSourceTypes = map[string]struct{}{
	"graph":      {},
	"timeseries": {},
	"stat":       {},
}

// PanelCategory maps a Grafana panel type to its Kibana category. Unknown
// types map to CategoryVisualization.
func PanelCategory(panelType string) string {
	if c, ok := panelCategories[panelType]; ok {
		return c
	}
	return CategoryVisualization
}

// VisualizationSubtype maps a Grafana panel type to a Kibana vis type,
// falling back to line.
func VisualizationSubtype(panelType string) string {
	if v, ok := visSubtypes[panelType]; ok {
		return v
	}
	return defaultVisSubtype
}

func DatasourceTarget(name string) (string, bool) {
	v, ok := datasourceTargets[name]
	return v, ok
}

func IsSupportedPanelType(panelType string) bool {
	_, ok := panelCategories[panelType]
	return ok
}

func IsKnownVisSubtype(v string) bool {
	_, ok := knownVisSubtypes[v]
	return ok
}

func SupportedPanelTypes() []string {
	return sortedKeys(panelCategories)
}

func SupportedDatasources() []string {
	return sortedKeys(datasourceTargets)
}

func KnownVisSubtypes() []string {
	out := make([]string, 0, len(knownVisSubtypes))
	for k := range knownVisSubtypes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
