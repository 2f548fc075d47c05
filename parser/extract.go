package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DateTimeLayout is the timestamp format used across AtCoder tables.
const DateTimeLayout = "2006-01-02 15:04:05-0700"

var (
	errBeforeEpoch    = errors.New("timestamp before unix epoch")
	errLayoutMismatch = errors.New("text does not match layout exactly")
)

// NewDocument parses a fetched page.
func NewDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &StructureError{Selector: "document", Err: err}
	}
	return doc, nil
}

// firstTableBody returns the first tbody in document order.
func firstTableBody(doc *goquery.Document) (*goquery.Selection, error) {
	tbody := doc.Find("tbody").First()
	if tbody.Length() == 0 {
		return nil, &StructureError{Selector: "tbody"}
	}
	return tbody, nil
}

// NthCell returns the n-th (zero based) td of row.
func NthCell(row *goquery.Selection, n int) (*goquery.Selection, error) {
	cells := row.Find("td")
	if n < 0 || n >= cells.Length() {
		return nil, &StructureError{Selector: fmt.Sprintf("td[%d]", n)}
	}
	return cells.Eq(n), nil
}

// FirstLink returns the first anchor inside scope.
func FirstLink(scope *goquery.Selection) (*goquery.Selection, error) {
	a := scope.Find("a").First()
	if a.Length() == 0 {
		return nil, &StructureError{Selector: "a"}
	}
	return a, nil
}

// FirstMatchingLink returns the first anchor inside scope whose href matches re.
func FirstMatchingLink(scope *goquery.Selection, re *regexp.Regexp) (*goquery.Selection, error) {
	a := scope.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return re.MatchString(href)
	}).First()
	if a.Length() == 0 {
		return nil, &StructureError{Selector: fmt.Sprintf("a[href=~%s]", re)}
	}
	return a, nil
}

// Href returns the href attribute of the first node in sel.
func Href(sel *goquery.Selection) (string, error) {
	href, ok := sel.Attr("href")
	if !ok {
		return "", &StructureError{Selector: "a[href]"}
	}
	return href, nil
}

// URLTail returns the part of href after its last slash.
func URLTail(href string) string {
	return href[strings.LastIndex(href, "/")+1:]
}

// LinkTail resolves the first anchor of scope to its href tail.
func LinkTail(scope *goquery.Selection) (string, error) {
	a, err := FirstLink(scope)
	if err != nil {
		return "", err
	}
	href, err := Href(a)
	if err != nil {
		return "", err
	}
	return URLTail(href), nil
}

// FirstText returns the first non-blank text node below sel, trimmed.
func FirstText(sel *goquery.Selection) (string, bool) {
	for _, n := range sel.Nodes {
		if text, ok := firstTextNode(n); ok {
			return text, true
		}
	}
	return "", false
}

func firstTextNode(n *html.Node) (string, bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if text := strings.TrimSpace(c.Data); text != "" {
				return text, true
			}
		case html.ElementNode:
			if text, ok := firstTextNode(c); ok {
				return text, true
			}
		}
	}
	return "", false
}

// RequireText is FirstText for fields that must be present.
func RequireText(sel *goquery.Selection) (string, error) {
	text, ok := FirstText(sel)
	if !ok {
		return "", &StructureError{Selector: "text()"}
	}
	return text, nil
}

// ParseLocalizedDatetime parses text with layout and returns seconds since the
// unix epoch.
func ParseLocalizedDatetime(text, layout string) (uint64, error) {
	trimmed := strings.TrimSpace(text)
	t, err := time.Parse(layout, trimmed)
	if err != nil {
		return 0, &ValueError{Text: text, Err: err}
	}
	// time.Parse accepts a fractional second the layout does not name.
	if t.Format(layout) != trimmed {
		return 0, &ValueError{Text: text, Err: errLayoutMismatch}
	}
	sec := t.Unix()
	if sec < 0 {
		return 0, &ValueError{Text: text, Err: errBeforeEpoch}
	}
	return uint64(sec), nil
}

// StripUnitAndParseInt removes a trailing unit literal such as "Byte" or "ms"
// and parses the remainder as an unsigned integer.
func StripUnitAndParseInt(text, unit string) (uint64, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), unit))
	n, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, &ValueError{Text: text, Err: err}
	}
	return n, nil
}

// ParsePoint parses a score cell.
func ParsePoint(text string) (float64, error) {
	p, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, &ValueError{Text: text, Err: err}
	}
	return p, nil
}

// ParseClockDuration converts "H:MM" into seconds. Hours may exceed 24.
func ParseClockDuration(text string) (uint64, error) {
	hours, minutes, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return 0, &ValueError{Text: text, Err: errors.New("expected H:MM")}
	}
	h, err := strconv.ParseUint(hours, 10, 64)
	if err != nil {
		return 0, &ValueError{Text: text, Err: err}
	}
	m, err := strconv.ParseUint(minutes, 10, 64)
	if err != nil {
		return 0, &ValueError{Text: text, Err: err}
	}
	if m >= 60 {
		return 0, &ValueError{Text: text, Err: errors.New("minutes out of range")}
	}
	return h*3600 + m*60, nil
}
