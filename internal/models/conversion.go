package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

type ConversionStatus string

const (
	StatusPending    ConversionStatus = "pending"
	StatusProcessing ConversionStatus = "processing"
	StatusCompleted  ConversionStatus = "completed"
	StatusFailed     ConversionStatus = "failed"
)

const DefaultTargetVersion = "8.11.0"

// ConversionOptions controls a single conversion. Treat it as a value: Clone
// before mutating the mapping.
type ConversionOptions struct {
	PreservePanelIDs      bool              `json:"preservePanelIds" mapstructure:"preservePanelIds"`
	ConvertQueries        bool              `json:"convertQueries" mapstructure:"convertQueries"`
	ConvertVisualizations bool              `json:"convertVisualizations" mapstructure:"convertVisualizations"`
	ConvertVariables      bool              `json:"convertVariables" mapstructure:"convertVariables"`
	ConvertAnnotations    bool              `json:"convertAnnotations" mapstructure:"convertAnnotations"`
	TargetVersion         string            `json:"targetVersion" mapstructure:"targetVersion"`
	IndexPatternMapping   map[string]string `json:"indexPatternMapping,omitempty" mapstructure:"indexPatternMapping"`
}

func DefaultConversionOptions() ConversionOptions {
	return ConversionOptions{
		PreservePanelIDs:      true,
		ConvertQueries:        true,
		ConvertVisualizations: true,
		ConvertVariables:      true,
		ConvertAnnotations:    true,
		TargetVersion:         DefaultTargetVersion,
	}
}

func (o ConversionOptions) Clone() ConversionOptions {
	c := o
	if o.IndexPatternMapping != nil {
		c.IndexPatternMapping = make(map[string]string, len(o.IndexPatternMapping))
		for k, v := range o.IndexPatternMapping {
			c.IndexPatternMapping[k] = v
		}
	}
	return c
}

// ParseConversionOptions overlays a loosely typed payload on base. Keys match
// ignoring case, underscores and dashes, so preserve_panel_ids and
// preservePanelIds are equivalent, and target_kibana_version is accepted for
// targetVersion. Unknown keys are ignored.
func ParseConversionOptions(base ConversionOptions, raw map[string]interface{}) (ConversionOptions, error) {
	out := base.Clone()
	if len(raw) == 0 {
		return out, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeOptionKey(mapKey) == normalizeOptionKey(fieldName)
		},
	})
	if err != nil {
		return base, fmt.Errorf("build options decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return base, fmt.Errorf("decode conversion options: %w", err)
	}
	if out.TargetVersion == "" {
		out.TargetVersion = DefaultTargetVersion
	}
	return out, nil
}

// optionAliases maps normalised legacy keys onto field names.
var optionAliases = map[string]string{
	"targetkibanaversion": "targetversion",
}

func normalizeOptionKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	k = strings.ReplaceAll(k, "-", "")
	if alias, ok := optionAliases[k]; ok {
		return alias
	}
	return k
}

// ConversionResult is the outcome of converting one dashboard.
type ConversionResult struct {
	ID               string            `json:"id"`
	Status           ConversionStatus  `json:"status"`
	GrafanaDashboard *GrafanaDashboard `json:"grafana_dashboard,omitempty"`
	KibanaDashboard  *KibanaDashboard  `json:"kibana_dashboard,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	ConversionTimeMs int64             `json:"conversion_time_ms"`
}

// ConversionSummary describes a source dashboard before conversion.
type ConversionSummary struct {
	TotalPanels       int            `json:"total_panels"`
	SupportedPanels   int            `json:"supported_panels"`
	UnsupportedPanels int            `json:"unsupported_panels"`
	PanelTypes        map[string]int `json:"panel_types"`
	Datasources       []string       `json:"datasources"`
	Variables         int            `json:"variables"`
	Annotations       int            `json:"annotations"`
}

// BatchResult aggregates conversions submitted together. Conversions keep
// the submission order.
type BatchResult struct {
	BatchID         string             `json:"batch_id"`
	Status          ConversionStatus   `json:"status"`
	TotalDashboards int                `json:"total_dashboards"`
	Completed       int                `json:"completed"`
	Failed          int                `json:"failed"`
	Conversions     []ConversionResult `json:"conversions"`
	CreatedAt       time.Time          `json:"created_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

// Progress is the last reported state of a running job.
type Progress struct {
	JobID     string    `json:"job_id"`
	Progress  int       `json:"progress"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidationReport is returned by dry-run validation.
type ValidationReport struct {
	Valid    bool               `json:"valid"`
	Errors   []string           `json:"errors,omitempty"`
	Summary  *ConversionSummary `json:"summary,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

type Capabilities struct {
	SupportedPanelTypes  []string        `json:"supported_panel_types"`
	SupportedDatasources []string        `json:"supported_datasources"`
	Features             map[string]bool `json:"features"`
	Limits               Limits          `json:"limits"`
}

type Limits struct {
	MaxPanelsPerDashboard    int      `json:"max_panels_per_dashboard"`
	MaxBatchSize             int      `json:"max_batch_size"`
	SupportedGrafanaVersions []string `json:"supported_grafana_versions"`
	SupportedKibanaVersions  []string `json:"supported_kibana_versions"`
}

// ServiceStatus reports conversion counts for the status endpoint.
type ServiceStatus struct {
	Service           string  `json:"service"`
	Version           string  `json:"version"`
	Status            string  `json:"status"`
	UptimeSeconds     float64 `json:"uptime"`
	ActiveConversions int     `json:"active_conversions"`
	TotalConversions  int     `json:"total_conversions"`
	ActiveBatches     int     `json:"active_batches"`
	EnrichmentEnabled bool    `json:"enrichment_enabled"`
}
