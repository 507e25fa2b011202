package commands

import (
	"strings"
	"testing"

	"github.com/benvon/comment-pulse/internal/models"
)

func TestRenderTable(t *testing.T) {
	t.Parallel()

	if got := renderTable(nil, nil, nil); got != "" {
		t.Errorf("Expected empty output without headers, got %q", got)
	}

	got := renderTable(
		[]string{"Name", "Count"},
		[][]string{{"alpha", "3"}, {"beta"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	// go-pretty upper-cases headers
	for _, want := range []string{"╭", "NAME", "COUNT", "alpha", "beta"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected table to contain %q, got:\n%s", want, got)
		}
	}
	if lines := strings.Split(got, "\n"); len(lines) != 6 {
		t.Errorf("Expected 6 lines (border, header, separator, 2 rows, border), got %d:\n%s", len(lines), got)
	}
}

func TestRenderRecords_TrimsLongComments(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", maxCellText+20)
	got := renderRecords([]models.CommentRecord{{
		SourceImage: "a.png",
		Text:        long,
		Sentiment:   models.SentimentNeutral,
		Confidence:  0.5,
		Topic:       "Other",
		Theme:       "Other",
	}})
	if strings.Contains(got, long) {
		t.Error("Expected long comment to be trimmed")
	}
	if !strings.Contains(got, "0.50") {
		t.Errorf("Expected confidence with two decimals, got:\n%s", got)
	}
}

func TestRenderStats(t *testing.T) {
	t.Parallel()

	stats := models.AnalysisStats{
		Total:    3,
		Positive: 2,
		Negative: 1,
		Topics:   map[string]int{"Pricing": 2, "Support": 1},
		Themes:   map[string]int{"Cost": 2, "Service": 1},
	}

	got := renderStats(stats, 1)
	for _, want := range []string{"67%", "33%", "Topic: Pricing", "Theme: Cost"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected stats to contain %q, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Support") || strings.Contains(got, "Service") {
		t.Errorf("Expected limit 1 to drop lower ranked entries, got:\n%s", got)
	}
}
