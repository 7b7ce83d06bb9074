// Package presentation turns a ScoreResult into the badge, detail and
// alternatives models consumed by the UI layer.
package presentation

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/scoring"
)

// NoDataText is the badge marker shown when there is no composite score
const NoDataText = "N/A"

// NoDataValue is the category value shown when a category has no score
const NoDataValue = "no data"

// Badge is the icon payload
type Badge struct {
	Text string       `json:"text"`
	Band scoring.Band `json:"band"`
}

// DetailEntry is one category row of the details view
type DetailEntry struct {
	Category domain.Category `json:"category"`
	Label    string          `json:"label"`
	Value    string          `json:"value"`
	Band     scoring.Band    `json:"band"`
	Rating   string          `json:"rating"`
	Analysis string          `json:"analysis"`
}

// View bundles everything the UI needs for one result
type View struct {
	Badge        Badge                `json:"badge"`
	Brand        string               `json:"brand"`
	ProductName  string               `json:"productName,omitempty"`
	Certainty    domain.Certainty     `json:"certainty"`
	Message      string               `json:"message,omitempty"`
	Details      []DetailEntry        `json:"details"`
	Alternatives []domain.Alternative `json:"alternatives"`
	Failed       bool                 `json:"failed"`
}

// BadgeFor builds the badge for a composite score
func BadgeFor(score *int) Badge {
	if score == nil {
		return Badge{Text: NoDataText, Band: scoring.BandUnknown}
	}
	return Badge{Text: strconv.Itoa(*score), Band: scoring.BandFor(*score)}
}

// Details lists one entry per category. Values are the unweighted category scores.
func Details(result *domain.ScoreResult) []DetailEntry {
	if result == nil {
		return nil
	}
	entries := make([]DetailEntry, 0, len(result.Breakdown))
	for _, b := range result.Breakdown {
		entry := DetailEntry{
			Category: b.Category,
			Label:    b.Category.Label(),
			Value:    NoDataValue,
			Band:     scoring.CategoryBand(b.RawScore),
			Rating:   b.RatingLabel,
			Analysis: b.Analysis,
		}
		if v, ok := scoring.DisplayScore(b.RawScore); ok {
			entry.Value = strconv.FormatFloat(v, 'f', 1, 64) + "/10"
		}
		if entry.Rating == "" {
			entry.Rating = scoring.RatingLabel(b.RawScore)
		}
		entries = append(entries, entry)
	}
	return entries
}

// Alternatives returns the suggestions in the order received
func Alternatives(result *domain.ScoreResult) []domain.Alternative {
	if result == nil {
		return []domain.Alternative{}
	}
	return append([]domain.Alternative{}, result.Alternatives...)
}

// Render builds the full view
func Render(result *domain.ScoreResult) View {
	if result == nil {
		return View{Badge: BadgeFor(nil), Details: []DetailEntry{}, Alternatives: []domain.Alternative{}}
	}
	return View{
		Badge:        BadgeFor(result.CompositeScore),
		Brand:        result.Brand,
		ProductName:  result.ProductName,
		Certainty:    result.Certainty,
		Message:      result.Message,
		Details:      Details(result),
		Alternatives: Alternatives(result),
		Failed:       result.Failed(),
	}
}

// WriteText prints a view for a terminal
func WriteText(w io.Writer, v View) error {
	var sb strings.Builder

	title := v.Brand
	if v.ProductName != "" {
		title = fmt.Sprintf("%s (%s)", v.ProductName, v.Brand)
	}
	fmt.Fprintf(&sb, "%s\n", title)
	fmt.Fprintf(&sb, "Sustainability score: %s [%s]  certainty: %s\n", v.Badge.Text, v.Badge.Band, v.Certainty)
	if v.Message != "" {
		fmt.Fprintf(&sb, "%s\n", v.Message)
	}

	for _, d := range v.Details {
		fmt.Fprintf(&sb, "  %-26s %-8s %-8s %s\n", d.Label, d.Value, d.Rating, d.Analysis)
	}

	if len(v.Alternatives) > 0 {
		sb.WriteString("Better alternatives:\n")
		for _, a := range v.Alternatives {
			fmt.Fprintf(&sb, "  %s (%d)\n", a.Brand, a.Score)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
