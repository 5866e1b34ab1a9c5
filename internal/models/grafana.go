package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// GrafanaDashboard is the source document. Panels stay loosely structured
// through SourcePanel; dashboard-level fields not listed here are dropped on
// decode.
type GrafanaDashboard struct {
	Title                string            `json:"title"`
	UID                  string            `json:"uid,omitempty"`
	Version              *int              `json:"version,omitempty"`
	Time                 json.RawMessage   `json:"time,omitempty"`
	Timezone             string            `json:"timezone,omitempty"`
	Refresh              string            `json:"refresh,omitempty"`
	SchemaVersion        *int              `json:"schemaVersion,omitempty"`
	Style                string            `json:"style,omitempty"`
	Tags                 []string          `json:"tags,omitempty"`
	Templating           *Listing          `json:"templating,omitempty"`
	Annotations          *Listing          `json:"annotations,omitempty"`
	Panels               []SourcePanel     `json:"panels"`
	Links                []json.RawMessage `json:"links,omitempty"`
	Editable             *bool             `json:"editable,omitempty"`
	GraphTooltip         *int              `json:"graphTooltip,omitempty"`
	HideControls         *bool             `json:"hideControls,omitempty"`
	Timepicker           json.RawMessage   `json:"timepicker,omitempty"`
	FiscalYearStartMonth *int              `json:"fiscalYearStartMonth,omitempty"`
	LiveNow              *bool             `json:"liveNow,omitempty"`
}

// Listing models Grafana's {"list": [...]} wrappers (templating, annotations).
type Listing struct {
	List []json.RawMessage `json:"list"`
}

// Len is nil-safe.
func (l *Listing) Len() int {
	if l == nil {
		return 0
	}
	return len(l.List)
}

// DecodeGrafanaDashboard decodes a dashboard document. A missing panels field
// decodes to an empty slice; use converter.Validate on the raw map when the
// caller must reject it.
func DecodeGrafanaDashboard(data []byte) (*GrafanaDashboard, error) {
	var d GrafanaDashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode grafana dashboard: %w", err)
	}
	if d.Panels == nil {
		d.Panels = []SourcePanel{}
	}
	return &d, nil
}

// SourcePanel is one Grafana panel. Every field is optional; defaulting
// happens in the converter. Fields the converter does not read are kept in
// Extra, as are unread keys of targets and fieldConfig, so re-encoding the
// panel gives back every key of the source.
type SourcePanel struct {
	ID          *PanelID       `json:"-"`
	Type        string         `json:"-"`
	Title       string         `json:"-"`
	GridPos     *GridPos       `json:"-"`
	Datasource  *DatasourceRef `json:"-"`
	Targets     []Target       `json:"-"`
	FieldConfig *FieldConfig   `json:"-"`

	Extra map[string]json.RawMessage `json:"-"`
}

type sourcePanelWire struct {
	ID          *PanelID       `json:"id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	GridPos     *GridPos       `json:"gridPos"`
	Datasource  *DatasourceRef `json:"datasource"`
	Targets     []Target       `json:"targets"`
	FieldConfig *FieldConfig   `json:"fieldConfig"`
}

var knownPanelKeys = []string{"id", "type", "title", "gridPos", "datasource", "targets", "fieldConfig"}

func (p *SourcePanel) UnmarshalJSON(data []byte) error {
	var w sourcePanelWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownPanelKeys {
		delete(raw, k)
	}

	*p = SourcePanel{
		ID:          w.ID,
		Type:        w.Type,
		Title:       w.Title,
		GridPos:     w.GridPos,
		Datasource:  w.Datasource,
		Targets:     w.Targets,
		FieldConfig: w.FieldConfig,
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	return nil
}

func (p SourcePanel) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Extra)+len(knownPanelKeys))
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.ID != nil {
		out["id"] = p.ID
	}
	if p.Type != "" {
		out["type"] = p.Type
	}
	if p.Title != "" {
		out["title"] = p.Title
	}
	if p.GridPos != nil {
		out["gridPos"] = p.GridPos
	}
	if p.Datasource != nil {
		out["datasource"] = p.Datasource
	}
	if p.Targets != nil {
		out["targets"] = p.Targets
	}
	if p.FieldConfig != nil {
		out["fieldConfig"] = p.FieldConfig
	}
	return json.Marshal(out)
}

// HasTargets reports whether the panel carried a targets field, even an
// empty one.
func (p SourcePanel) HasTargets() bool {
	return p.Targets != nil
}

// PanelID holds a Grafana panel id, which may be numeric or a string.
type PanelID struct {
	Value   string
	Numeric bool
}

// NumericPanelID is a convenience constructor used by tests and fixtures.
func NumericPanelID(n int) *PanelID {
	return &PanelID{Value: strconv.Itoa(n), Numeric: true}
}

// StringPanelID wraps a string id.
func StringPanelID(s string) *PanelID {
	return &PanelID{Value: s}
}

func (id *PanelID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PanelID{Value: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("panel id must be a number or string: %w", err)
	}
	*id = PanelID{Value: n.String(), Numeric: true}
	return nil
}

func (id PanelID) MarshalJSON() ([]byte, error) {
	if id.Numeric {
		return []byte(id.Value), nil
	}
	return json.Marshal(id.Value)
}

func (id *PanelID) String() string {
	if id == nil {
		return ""
	}
	return id.Value
}

// GridPos coordinates are independently optional. Fractional coordinates
// are truncated on decode.
type GridPos struct {
	X *int `json:"x,omitempty"`
	Y *int `json:"y,omitempty"`
	W *int `json:"w,omitempty"`
	H *int `json:"h,omitempty"`
}

func (g *GridPos) UnmarshalJSON(data []byte) error {
	var w struct {
		X *json.Number `json:"x"`
		Y *json.Number `json:"y"`
		W *json.Number `json:"w"`
		H *json.Number `json:"h"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("gridPos: %w", err)
	}
	var out GridPos
	for _, f := range []struct {
		name string
		in   *json.Number
		dst  **int
	}{{"x", w.X, &out.X}, {"y", w.Y, &out.Y}, {"w", w.W, &out.W}, {"h", w.H, &out.H}} {
		if f.in == nil {
			continue
		}
		n, err := coordinate(*f.in)
		if err != nil {
			return fmt.Errorf("gridPos.%s: %w", f.name, err)
		}
		*f.dst = &n
	}
	*g = out
	return nil
}

func coordinate(n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Target is one panel query. Keys other than the ones below are kept in
// Extra.
type Target struct {
	RefID      string         `json:"refId,omitempty"`
	Expr       string         `json:"expr,omitempty"`
	Query      string         `json:"query,omitempty"`
	Datasource *DatasourceRef `json:"datasource,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (t *Target) UnmarshalJSON(data []byte) error {
	type wire Target
	var w wire
	extra, err := decodeWithExtra(data, &w, "refId", "expr", "query", "datasource")
	if err != nil {
		return err
	}
	*t = Target(w)
	t.Extra = extra
	return nil
}

func (t Target) MarshalJSON() ([]byte, error) {
	type wire Target
	return encodeWithExtra(wire(t), t.Extra)
}

// QueryText returns expr, falling back to query.
func (t Target) QueryText() string {
	if t.Expr != "" {
		return t.Expr
	}
	return t.Query
}

// DatasourceRef accepts both the legacy plain-string form and the
// {"type","uid","name"} object form.
type DatasourceRef struct {
	Name string `json:"name,omitempty"`
	UID  string `json:"uid,omitempty"`
	Type string `json:"type,omitempty"`

	plain bool
}

// PlainDatasource builds the legacy string form.
func PlainDatasource(name string) *DatasourceRef {
	return &DatasourceRef{Name: name, plain: true}
}

func (d *DatasourceRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = DatasourceRef{Name: s, plain: true}
		return nil
	}
	type wire DatasourceRef
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("datasource must be a string or object: %w", err)
	}
	*d = DatasourceRef(w)
	return nil
}

func (d DatasourceRef) MarshalJSON() ([]byte, error) {
	if d.plain {
		return json.Marshal(d.Name)
	}
	type wire DatasourceRef
	return json.Marshal(wire(d))
}

// DisplayName normalises either form to a single string. Object refs
// without a name fall back to uid, then type.
func (d *DatasourceRef) DisplayName() string {
	if d == nil {
		return ""
	}
	switch {
	case d.Name != "":
		return d.Name
	case d.UID != "":
		return d.UID
	default:
		return d.Type
	}
}

// FieldConfig keeps overrides and any other key in Extra.
type FieldConfig struct {
	Defaults *FieldDefaults `json:"defaults,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (f *FieldConfig) UnmarshalJSON(data []byte) error {
	type wire FieldConfig
	var w wire
	extra, err := decodeWithExtra(data, &w, "defaults")
	if err != nil {
		return err
	}
	*f = FieldConfig(w)
	f.Extra = extra
	return nil
}

func (f FieldConfig) MarshalJSON() ([]byte, error) {
	type wire FieldConfig
	return encodeWithExtra(wire(f), f.Extra)
}

// FieldDefaults keeps thresholds, color, mappings and the rest in Extra.
type FieldDefaults struct {
	Unit string `json:"unit,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (f *FieldDefaults) UnmarshalJSON(data []byte) error {
	type wire FieldDefaults
	var w wire
	extra, err := decodeWithExtra(data, &w, "unit")
	if err != nil {
		return err
	}
	*f = FieldDefaults(w)
	f.Extra = extra
	return nil
}

func (f FieldDefaults) MarshalJSON() ([]byte, error) {
	type wire FieldDefaults
	return encodeWithExtra(wire(f), f.Extra)
}

// decodeWithExtra decodes data into v and returns the object keys not named
// in known, or nil when there are none.
func decodeWithExtra(data []byte, v interface{}, known ...string) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

// encodeWithExtra marshals v and merges extra underneath its keys.
func encodeWithExtra(v interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(extra)+len(known))
	for k, raw := range extra {
		out[k] = raw
	}
	for k, raw := range known {
		out[k] = raw
	}
	return json.Marshal(out)
}
