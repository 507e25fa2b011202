package commands

import (
	"fmt"
	"strconv"

	"github.com/benvon/comment-pulse/internal/analysis"
	"github.com/benvon/comment-pulse/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxCellText keeps comment cells to one readable line
const maxCellText = 60

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// renderRecords lays out classified comments the way the dashboard
// explorer lists them
func renderRecords(records []models.CommentRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.SourceImage,
			string(r.Sentiment),
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			r.Topic,
			r.Theme,
			text.Trim(r.Text, maxCellText),
		})
	}
	return renderTable(
		[]string{"Image", "Sentiment", "Confidence", "Topic", "Theme", "Comment"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

// renderStats summarises records as sentiment shares followed by the
// ranked topics and themes
func renderStats(stats models.AnalysisStats, limit int) string {
	pct := analysis.Percentages(stats)
	rows := [][]string{
		{"Total", strconv.Itoa(stats.Total), ""},
		{"Positive", strconv.Itoa(stats.Positive), fmt.Sprintf("%d%%", pct.Positive)},
		{"Negative", strconv.Itoa(stats.Negative), fmt.Sprintf("%d%%", pct.Negative)},
		{"Neutral", strconv.Itoa(stats.Neutral), fmt.Sprintf("%d%%", pct.Neutral)},
	}
	for _, c := range analysis.TopCounts(stats.Topics, limit) {
		rows = append(rows, []string{"Topic: " + c.Name, strconv.Itoa(c.Count), ""})
	}
	for _, c := range analysis.TopCounts(stats.Themes, limit) {
		rows = append(rows, []string{"Theme: " + c.Name, strconv.Itoa(c.Count), ""})
	}
	return renderTable(
		[]string{"Metric", "Count", "Share"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	)
}
