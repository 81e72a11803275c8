package core

import "strings"

// Project turns data rows below the header into canonical rows. Rows whose
// mapped cells are all blank are dropped; unbound fields read as "". The
// pipeline's Derive hook runs on every kept row. Project is pure: the same
// inputs always give the same rows.
func Project(g Grid, headerIdx int, headers []string, mapping ColumnMapping, def *PipelineDefinition) []ProjectedRow {
	cols := mapping.Columns(headers)

	var rows []ProjectedRow
	for r := headerIdx + 1; r < len(g); r++ {
		values := make(map[string]string, len(def.Fields))
		blank := true
		for _, f := range def.Fields {
			c, ok := cols[f.Key]
			if !ok {
				values[f.Key] = ""
				continue
			}
			v := strings.TrimSpace(g.Cell(r, c))
			if v != "" {
				blank = false
			}
			values[f.Key] = v
		}
		if blank {
			continue
		}
		if def.Derive != nil {
			def.Derive(values)
		}
		rows = append(rows, ProjectedRow{Line: r + 1, Values: values})
	}
	return rows
}
