package export

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/joseph-ayodele/register-extractor/internal/register"
)

// RenderTable prints table to w as a bordered text grid.
func RenderTable(w io.Writer, table register.Table) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(table.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for i := range table.Rows {
		tw.Append(table.Values(i))
	}
	tw.Render()
}
