package store

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
)

//go:embed queries/*.sql
var queryFiles embed.FS

// loadQueries reads every embedded .sql file into one name -> SQL map.
func loadQueries() (map[string]string, error) {
	entries, err := queryFiles.ReadDir("queries")
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	queries := make(map[string]string)
	for _, e := range entries {
		data, err := queryFiles.ReadFile("queries/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		for name, q := range parseNamedQueries(string(data)) {
			if !validQueryName(name) {
				return nil, fmt.Errorf("%s: invalid query name %q", e.Name(), name)
			}
			if _, dup := queries[name]; dup {
				return nil, fmt.Errorf("%s: duplicate query %q", e.Name(), name)
			}
			queries[name] = q
		}
	}
	return queries, nil
}

// parseNamedQueries splits SQL content on "-- name: X" markers. Comment and
// blank lines are dropped and the remaining lines are trimmed.
func parseNamedQueries(content string) map[string]string {
	queries := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(content))

	var current strings.Builder
	var name string

	flush := func() {
		if name != "" && current.Len() > 0 {
			queries[name] = current.String()
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "-- name:") {
			flush()
			name = strings.TrimSpace(strings.TrimPrefix(line, "-- name:"))
			current.Reset()
			continue
		}
		if line == "" || strings.HasPrefix(line, "--") || name == "" {
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	return queries
}

func validQueryName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}
	return true
}

// NamedQueries returns every embedded statement by name.
func NamedQueries() (map[string]string, error) {
	return loadQueries()
}

// GraphQueryName picks the cursor statement for q.
func GraphQueryName(q Query) string {
	if q.HalfOpen && !q.End.IsZero() {
		return "graph_rows_half_open"
	}
	return "graph_rows_closed"
}
