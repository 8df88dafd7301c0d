package cmd

import (
	"fmt"
	"strings"

	"airplan/cli/internal/sqlexec"
)

// nullLiteral binds SQL NULL, the same marker mysql uses in LOAD DATA files.
const nullLiteral = `\N`

// parseParams turns repeated name=value flags into named statement
// parameters. Values are bound as strings and the server converts them.
func parseParams(pairs []string) (sqlexec.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(sqlexec.Params, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q: want name=value", pair)
		}
		if _, dup := params[name]; dup {
			return nil, fmt.Errorf("parameter %q given twice", name)
		}
		if value == nullLiteral {
			params[name] = nil
			continue
		}
		params[name] = value
	}
	return params, nil
}

// mergeParams overlays extra on top of base into a new map.
func mergeParams(base, extra sqlexec.Params) sqlexec.Params {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(sqlexec.Params, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
