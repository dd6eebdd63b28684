// Package report renders aggregate results for the external reporting layer:
// plain text tables for the terminal and HTML tables for embedding.
package report

import (
	"fmt"
	"html/template"
	"strings"
	"text/tabwriter"

	"purchasereport/internal/aggregate"
)

// MissingCell is how a missing measure renders.
const MissingCell = "-"

// Text renders a result as an aligned plain-text table.
func Text(res *aggregate.Result) string {
	var sb strings.Builder
	if res.Title != "" {
		fmt.Fprintf(&sb, "%s\n", res.Title)
	}

	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s", res.GroupColumn)
	for _, name := range res.MeasureNames {
		fmt.Fprintf(w, "\t%s", name)
	}
	fmt.Fprintln(w)

	for _, row := range res.Rows {
		fmt.Fprintf(w, "%s", row.Key)
		for i := range res.MeasureNames {
			fmt.Fprintf(w, "\t%s", cell(row, i))
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	return sb.String()
}

var htmlTmpl = template.Must(template.New("report").Parse(`<table class="report">
{{- if .Title}}
<caption>{{.Title}}</caption>
{{- end}}
<thead><tr><th>{{.GroupColumn}}</th>{{range .MeasureNames}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Body}}
<tr{{if .Total}} class="grand-total"{{end}}><td>{{.Key}}</td>{{range .Cells}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
`))

type htmlRow struct {
	Key   string
	Cells []string
	Total bool
}

// HTML renders a result as an HTML table. The grand-total row carries a
// "grand-total" class so stylesheets can set it off.
func HTML(res *aggregate.Result) (string, error) {
	body := make([]htmlRow, 0, len(res.Rows))
	for _, row := range res.Rows {
		hr := htmlRow{Key: row.Key, Total: row.Key == aggregate.GrandTotalLabel}
		for i := range res.MeasureNames {
			hr.Cells = append(hr.Cells, cell(row, i))
		}
		body = append(body, hr)
	}

	var sb strings.Builder
	err := htmlTmpl.Execute(&sb, struct {
		Title        string
		GroupColumn  string
		MeasureNames []string
		Body         []htmlRow
	}{res.Title, res.GroupColumn, res.MeasureNames, body})
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return sb.String(), nil
}

func cell(row aggregate.Row, i int) string {
	if row.Missing[i] {
		return MissingCell
	}
	return row.Values[i].String()
}
