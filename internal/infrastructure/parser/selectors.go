package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Main content regions in priority order.
var mainRegionSelectors = []string{"main", "article", "[role=main]"}

type tableRow struct {
	Label       string
	Description string
}

// first is the find-or-none primitive every lookup below is built on.
func first(sel *goquery.Selection) (*goquery.Selection, bool) {
	if sel == nil || sel.Length() == 0 {
		return nil, false
	}
	return sel.First(), true
}

func firstWhere(sel *goquery.Selection, match func(*goquery.Selection) bool) (*goquery.Selection, bool) {
	var found *goquery.Selection
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if match(s) {
			found = s
			return false
		}
		return true
	})
	return found, found != nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func mainRegion(doc *goquery.Document) (*goquery.Selection, bool) {
	for _, selector := range mainRegionSelectors {
		if region, ok := first(doc.Find(selector)); ok {
			return region, true
		}
	}
	return nil, false
}

// extractIntro returns the first paragraph longer than minLen characters,
// searching the main region when there is one and the whole document otherwise.
func extractIntro(doc *goquery.Document, minLen int) string {
	scope := doc.Selection
	if region, ok := mainRegion(doc); ok {
		scope = region
	}

	p, ok := firstWhere(scope.Find("p"), func(s *goquery.Selection) bool {
		return utf8.RuneCountInString(cleanText(s.Text())) > minLen
	})
	if !ok {
		return ""
	}
	return cleanText(p.Text())
}

func extractTableRows(doc *goquery.Document) []tableRow {
	table, ok := first(doc.Find("table"))
	if !ok {
		return nil
	}

	var rows []tableRow
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		rows = append(rows, tableRow{
			Label:       cleanText(cells.Eq(0).Text()),
			Description: cleanText(cells.Eq(1).Text()),
		})
	})
	return rows
}

func findSectionHeader(doc *goquery.Document, keywords []string) (*goquery.Selection, bool) {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	if len(lowered) == 0 {
		return nil, false
	}

	return firstWhere(doc.Find("h2, h3"), func(h *goquery.Selection) bool {
		text := strings.ToLower(h.Text())
		for _, kw := range lowered {
			if strings.Contains(text, kw) {
				return true
			}
		}
		return false
	})
}

// nextAfter finds the first element matching selector that follows header in
// document order, wherever it sits in the tree.
func nextAfter(doc *goquery.Document, header *goquery.Selection, selector string) (*goquery.Selection, bool) {
	anchor := header.Get(0)
	inside := header.Find("*")
	passed := false

	return firstWhere(doc.Find("*"), func(s *goquery.Selection) bool {
		if !passed {
			passed = s.Get(0) == anchor
			return false
		}
		return s.Is(selector) && !inside.IsSelection(s)
	})
}

func extractBullets(doc *goquery.Document, keywords []string) []string {
	header, ok := findSectionHeader(doc, keywords)
	if !ok {
		return nil
	}
	list, ok := nextAfter(doc, header, "ul, ol")
	if !ok {
		return nil
	}

	var items []string
	list.Find("li").Each(func(_ int, li *goquery.Selection) {
		if text := cleanText(li.Text()); text != "" {
			items = append(items, text)
		}
	})
	return items
}

func extractParagraph(doc *goquery.Document, keywords []string) string {
	header, ok := findSectionHeader(doc, keywords)
	if !ok {
		return ""
	}
	p, ok := nextAfter(doc, header, "p")
	if !ok {
		return ""
	}
	return cleanText(p.Text())
}
