package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/platformbuilds/dashbridge/internal/converter"
	"github.com/platformbuilds/dashbridge/internal/logging"
	"github.com/platformbuilds/dashbridge/internal/metrics"
	"github.com/platformbuilds/dashbridge/internal/models"
)

const (
	opSuggestType    = "suggest_type"
	opTranslateQuery = "translate_query"
)

// LLMEnricher asks a language model for visualization and query hints and
// filters the answers down to values Kibana can use.
type LLMEnricher struct {
	completer Completer
	logger    logging.Logger
}

func NewLLMEnricher(c Completer, logger logging.Logger) *LLMEnricher {
	return &LLMEnricher{completer: c, logger: logging.OrNop(logger)}
}

// SuggestType returns a Kibana visualization subtype, or "" when the model
// answers with anything outside the known set.
func (e *LLMEnricher) SuggestType(ctx context.Context, panel models.SourcePanel) (string, error) {
	info, err := panelInfoJSON(panel, "  ")
	if err != nil {
		return "", fmt.Errorf("encode panel: %w", err)
	}

	prompt := fmt.Sprintf(`Analyze this Grafana panel and suggest the best Kibana visualization type:

Panel Data: %s

Available Kibana visualizations: %s

Respond with only the visualization type name.`, info, strings.Join(converter.KnownVisSubtypes(), ", "))

	answer, err := e.complete(ctx, opSuggestType, prompt)
	if err != nil {
		return "", err
	}

	suggestion := strings.ToLower(strings.Trim(cleanAnswer(answer), " .`\"'"))
	if !converter.IsKnownVisSubtype(suggestion) {
		metrics.EnrichmentRequestsTotal.WithLabelValues(e.completer.Name(), opSuggestType, "rejected").Inc()
		e.logger.Debug("discarding unknown visualization suggestion", "panel", panel.Title, "suggestion", suggestion)
		return "", nil
	}
	return suggestion, nil
}

// TranslateQuery returns a Kibana query bar string, or "" when the answer
// does not parse.
func (e *LLMEnricher) TranslateQuery(ctx context.Context, query, sourceDatasource, targetDatasource string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil
	}

	prompt := fmt.Sprintf(`Translate this Grafana query to Kibana format:

Source Datasource: %s
Target Datasource: %s
Grafana Query: %s

Provide only the translated query in Kibana format, no explanations.`, sourceDatasource, targetDatasource, query)

	answer, err := e.complete(ctx, opTranslateQuery, prompt)
	if err != nil {
		return "", err
	}

	translated := cleanAnswer(answer)
	if err := ValidateQuery(translated); err != nil {
		metrics.EnrichmentRequestsTotal.WithLabelValues(e.completer.Name(), opTranslateQuery, "rejected").Inc()
		e.logger.Warn("discarding translated query", "source", sourceDatasource, "error", err)
		return "", nil
	}
	return translated, nil
}

func (e *LLMEnricher) complete(ctx context.Context, op, prompt string) (string, error) {
	provider := e.completer.Name()
	start := time.Now()
	answer, err := e.completer.Complete(ctx, prompt)
	metrics.EnrichmentDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EnrichmentRequestsTotal.WithLabelValues(provider, op, "error").Inc()
		return "", fmt.Errorf("%s %s: %w", provider, op, err)
	}
	metrics.EnrichmentRequestsTotal.WithLabelValues(provider, op, "success").Inc()
	return answer, nil
}

// cleanAnswer strips code fences and surrounding quotes models like to add.
func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			// drop an optional language tag on the fence line
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`\"'")
	return strings.TrimSpace(s)
}

// panelInfoJSON renders the subset of a panel the model is shown. It is
// also the cache key input, so field order must stay stable.
func panelInfoJSON(p models.SourcePanel, indent string) (string, error) {
	targets := p.Targets
	if targets == nil {
		targets = []models.Target{}
	}
	info := struct {
		Type        string              `json:"type"`
		Title       string              `json:"title"`
		Targets     []models.Target     `json:"targets"`
		FieldConfig *models.FieldConfig `json:"fieldConfig"`
	}{p.Type, p.Title, targets, p.FieldConfig}

	var (
		b   []byte
		err error
	)
	if indent == "" {
		b, err = json.Marshal(info)
	} else {
		b, err = json.MarshalIndent(info, "", indent)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}
