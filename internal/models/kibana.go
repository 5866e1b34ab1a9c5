package models

// KibanaDashboard is a saved object of type "dashboard". panelsJSON,
// optionsJSON and searchSourceJSON are JSON documents encoded as strings,
// which is the form the Kibana import API expects.
type KibanaDashboard struct {
	ID                   string            `json:"id,omitempty"`
	Type                 string            `json:"type"`
	Attributes           KibanaAttributes  `json:"attributes"`
	References           []Reference       `json:"references"`
	MigrationVersion     map[string]string `json:"migrationVersion,omitempty"`
	CoreMigrationVersion string            `json:"coreMigrationVersion,omitempty"`
	TypeMigrationVersion string            `json:"typeMigrationVersion,omitempty"`
	CreatedAt            string            `json:"created_at,omitempty"`
	UpdatedAt            string            `json:"updated_at,omitempty"`
	Version              string            `json:"version,omitempty"`
}

type KibanaAttributes struct {
	Title                 string                `json:"title"`
	Hits                  int                   `json:"hits"`
	Description           string                `json:"description"`
	PanelsJSON            string                `json:"panelsJSON"`
	OptionsJSON           string                `json:"optionsJSON"`
	Version               int                   `json:"version"`
	TimeRestore           bool                  `json:"timeRestore"`
	KibanaSavedObjectMeta KibanaSavedObjectMeta `json:"kibanaSavedObjectMeta"`
}

type KibanaSavedObjectMeta struct {
	SearchSourceJSON string `json:"searchSourceJSON"`
}

// Reference links the dashboard to an index pattern.
type Reference struct {
	Name string `json:"name"`
	Type string `json:"type"`
	ID   string `json:"id"`
}

// KibanaPanel is one entry of the decoded panelsJSON array.
type KibanaPanel struct {
	Type             string           `json:"type"`
	ID               string           `json:"id"`
	PanelIndex       int              `json:"panelIndex"`
	GridData         GridData         `json:"gridData"`
	Version          string           `json:"version"`
	EmbeddableConfig EmbeddableConfig `json:"embeddableConfig"`
	Title            string           `json:"title"`
	SavedObjectID    string           `json:"savedObjectId"`
	AIConverted      bool             `json:"aiConverted"`
}

type GridData struct {
	X int    `json:"x"`
	Y int    `json:"y"`
	W int    `json:"w"`
	H int    `json:"h"`
	I string `json:"i"`
}

type EmbeddableConfig struct {
	Vis          *VisConfig    `json:"vis,omitempty"`
	SearchSource *SearchSource `json:"searchSource,omitempty"`
}

type VisConfig struct {
	Type   string    `json:"type"`
	Params VisParams `json:"params"`
}

type VisParams struct {
	Type   string        `json:"type,omitempty"`
	Metric *MetricParams `json:"metric,omitempty"`
}

type MetricParams struct {
	PercentageMode      bool   `json:"percentageMode"`
	UseRanges           bool   `json:"useRanges"`
	ColorSchema         string `json:"colorSchema"`
	MetricColorMode     string `json:"metricColorMode"`
	NumberFormat        string `json:"numberFormat"`
	ColorFullBackground bool   `json:"colorFullBackground"`
}

type SearchSource struct {
	Query KQLQuery `json:"query"`
}

type KQLQuery struct {
	Query    string `json:"query"`
	Language string `json:"language"`
}

// DashboardOptions is the decoded optionsJSON.
type DashboardOptions struct {
	HidePanelTitles bool `json:"hidePanelTitles"`
	UseMargins      bool `json:"useMargins"`
	SyncColors      bool `json:"syncColors"`
	SyncCursor      bool `json:"syncCursor"`
	SyncTooltips    bool `json:"syncTooltips"`
	HideAllLegends  bool `json:"hideAllLegends"`
}

// SearchSourceMeta is the decoded searchSourceJSON.
type SearchSourceMeta struct {
	Query     KQLQuery      `json:"query"`
	Filter    []interface{} `json:"filter"`
	Highlight Highlight     `json:"highlight"`
}

type Highlight struct {
	PreTags           []string            `json:"pre_tags"`
	PostTags          []string            `json:"post_tags"`
	Fields            map[string]struct{} `json:"fields"`
	RequireFieldMatch bool                `json:"require_field_match"`
	FragmentSize      int                 `json:"fragment_size"`
}
