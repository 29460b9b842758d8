// internal/output/table.go
package output

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderTable formats rows under headers for the terminal. Missing cells
// render empty; long cells are cut at maxCell runes when maxCell > 0.
func RenderTable(headers []string, rows [][]string, maxCell int) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		cfg := table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if maxCell > 0 {
			cfg.Transformer = text.Transformer(func(v interface{}) string {
				s, _ := v.(string)
				return text.Trim(s, maxCell)
			})
		}
		configs = append(configs, cfg)
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// PrintTable writes RenderTable output followed by a newline.
func PrintTable(w io.Writer, headers []string, rows [][]string, maxCell int) error {
	out := RenderTable(headers, rows, maxCell)
	if out == "" {
		return nil
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}
