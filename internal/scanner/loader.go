package scanner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/equiscan/internal/domain"
	"github.com/aristath/equiscan/internal/warehouse"
)

var sessionNames = map[string]domain.Session{
	domain.SessionPreMarket.String():  domain.SessionPreMarket,
	domain.SessionMarketOpen.String(): domain.SessionMarketOpen,
	domain.SessionPostMarket.String(): domain.SessionPostMarket,
	domain.SessionClosed.String():     domain.SessionClosed,
}

// LoadFilters decodes Warehouse filter rows into Engine-ready Filters,
// the declarative-parameters-as-jsonb convention scanner_filters.Parameters
// documents. A row whose Parameters fails to decode is skipped with its
// error collected rather than aborting the whole reload, so one bad row
// doesn't blank out every other filter on a reload tick.
func LoadFilters(rows []warehouse.ScannerFilter) ([]Filter, []error) {
	filters := make([]Filter, 0, len(rows))
	var errs []error

	for _, row := range rows {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(row.Parameters), &raw); err != nil {
			errs = append(errs, fmt.Errorf("filter %q: decode parameters: %w", row.Name, err))
			continue
		}
		// Keys are snake_case (min_rvol); with the underscores dropped they
		// match FilterParameters' field names case-insensitively.
		folded := make(map[string]json.RawMessage, len(raw))
		for k, v := range raw {
			folded[strings.ReplaceAll(k, "_", "")] = v
		}
		encoded, _ := json.Marshal(folded)
		var params FilterParameters
		if err := json.Unmarshal(encoded, &params); err != nil {
			errs = append(errs, fmt.Errorf("filter %q: decode parameters: %w", row.Name, err))
			continue
		}

		var sessions []domain.Session
		for _, name := range strings.Split(row.Sessions, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			s, ok := sessionNames[name]
			if !ok {
				errs = append(errs, fmt.Errorf("filter %q: unknown session %q", row.Name, name))
				continue
			}
			sessions = append(sessions, s)
		}

		filters = append(filters, Filter{
			Name:       row.Name,
			Enabled:    row.Enabled,
			Priority:   row.Priority,
			Sessions:   sessions,
			Parameters: params,
		})
	}

	return filters, errs
}
