package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// labelValueRegex matches "Label: value" text with a reasonably short label
var labelValueRegex = regexp.MustCompile(`^([^:]{1,60}):\s*(.+)$`)

// extractSpecifications walks candidate containers for label/value pairs.
// Later pairs overwrite earlier ones on key collision.
func (e *Extractor) extractSpecifications(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)
	seen := make(map[*html.Node]bool)

	for _, sel := range e.specContainers {
		doc.Find(sel).Each(func(_ int, container *goquery.Selection) {
			node := container.Get(0)
			if seen[node] {
				return
			}
			seen[node] = true
			collectPairs(container, specs)
		})
	}

	return specs
}

// collectPairs reads two-cell rows, dt/dd pairs and "label: value" list items
func collectPairs(container *goquery.Selection, specs map[string]string) {
	container.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("th, td")
		if cells.Length() != 2 {
			return
		}
		addPair(specs, cells.Eq(0).Text(), cells.Eq(1).Text())
	})

	container.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		addPair(specs, dt.Text(), dd.Text())
	})

	container.Find("li, p, span, div").Each(func(_ int, s *goquery.Selection) {
		// leaf text only; containers of rows were handled above
		if s.Children().Not("span, b, strong, i, em").Length() > 0 {
			return
		}
		m := labelValueRegex.FindStringSubmatch(cleanText(s.Text()))
		if m == nil {
			return
		}
		addPair(specs, m[1], m[2])
	})
}

func addPair(specs map[string]string, label, value string) {
	key := normalizeLabel(label)
	value = cleanText(value)
	if key == "" || value == "" {
		return
	}
	specs[key] = value
}

// normalizeLabel lowercases a label and strips trailing colons
func normalizeLabel(label string) string {
	label = strings.ToLower(cleanText(label))
	// detail bullets on some sites carry invisible direction marks around the colon
	return strings.TrimRight(label, ":：\u200e\u200f ")
}
