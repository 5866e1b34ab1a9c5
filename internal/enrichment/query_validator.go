package enrichment

import (
	"fmt"
	"strings"

	"github.com/grindlemire/go-lucene"
)

var dangerousPatterns = []string{"<script", "javascript:", "eval(", "exec(", "system("}

// ValidateQuery checks that a translated query is usable as a Kibana query
// bar string: it must parse as Lucene syntax and carry no script-like
// payloads.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("empty query")
	}

	lowerQuery := strings.ToLower(query)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerQuery, pattern) {
			return fmt.Errorf("potentially dangerous pattern detected: %s", pattern)
		}
	}

	if _, err := lucene.Parse(query); err != nil {
		return fmt.Errorf("invalid Lucene query syntax: %w", err)
	}

	return nil
}
