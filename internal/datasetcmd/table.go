package datasetcmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// tableLayout controls how a command renders its table. The zero value is
// a rounded table with left-aligned columns.
type tableLayout struct {
	title  string
	aligns []columnAlignment
	footer []string
	// compact drops the row separators and borders for long listings
	compact bool
}

func renderTable(headers []string, rows [][]string, layout tableLayout) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	if layout.compact {
		tw.SetStyle(table.StyleLight)
		tw.Style().Options.DrawBorder = false
	} else {
		tw.SetStyle(table.StyleRounded)
	}
	// headers name manifest fields, keep them as written
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault
	if layout.title != "" {
		tw.SetTitle(layout.title)
	}

	tw.AppendHeader(padRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(padRow(row, len(headers)))
	}
	if len(layout.footer) > 0 {
		tw.AppendFooter(padRow(layout.footer, len(headers)))
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(layout.aligns) && layout.aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			AlignFooter: align,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// padRow converts cells to a table row of exactly n columns
func padRow(cells []string, n int) table.Row {
	row := make(table.Row, n)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
