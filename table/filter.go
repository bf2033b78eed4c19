package table

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/remote"
)

// ParseFilter decodes a filter from its JSON form. Both the object form
// {"space": "...", "filters": [...]} and a bare clause list are accepted.
// Malformed input is logged and yields the empty filter, which matches
// everything; a broken filter never fails a table read.
func ParseFilter(raw string, logger *slog.Logger, m *metric.Metrics) remote.Filter {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return remote.Filter{}
	}

	var (
		f   remote.Filter
		err error
	)
	if strings.HasPrefix(raw, "[") {
		err = json.Unmarshal([]byte(raw), &f.Clauses)
	} else {
		err = json.Unmarshal([]byte(raw), &f)
	}
	if err == nil {
		err = validate(f)
	}
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("Ignoring malformed table filter", "component", "table", "error", err)
		if m != nil {
			m.FilterFailures.Inc()
		}
		return remote.Filter{}
	}
	return f
}

func validate(f remote.Filter) error {
	for i, c := range f.Clauses {
		if c.ColumnID == "" {
			return fmt.Errorf("clause %d has no columnId", i)
		}
	}
	return nil
}
