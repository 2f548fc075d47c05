package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-atcoder/models"
)

var (
	submissionDetailPattern = regexp.MustCompile(`submissions/\d+$`)
	pageLinkPattern         = regexp.MustCompile(`page=\d+$`)
)

// locator finds the node a field is read from, either by column or by
// searching the whole row.
type locator func(row *goquery.Selection) (*goquery.Selection, error)

func atColumn(n int) locator {
	return func(row *goquery.Selection) (*goquery.Selection, error) {
		return NthCell(row, n)
	}
}

func anyLink(re *regexp.Regexp) locator {
	return func(row *goquery.Selection) (*goquery.Selection, error) {
		return FirstMatchingLink(row, re)
	}
}

// submissionField maps one node of a listing row onto a Submission.
// Optional fields keep their zero value when the node is missing and never
// fail on its content.
type submissionField struct {
	name     string
	locate   locator
	optional bool
	assign   func(node *goquery.Selection, s *models.Submission) error
}

// Columns: time, problem, user, language, point, length, result, execution time.
var submissionSchema = []submissionField{
	{
		name:   "epoch_second",
		locate: atColumn(0),
		assign: func(td *goquery.Selection, s *models.Submission) (err error) {
			text, err := RequireText(td)
			if err != nil {
				return err
			}
			s.EpochSecond, err = ParseLocalizedDatetime(text, DateTimeLayout)
			return err
		},
	},
	{
		name:   "problem_id",
		locate: atColumn(1),
		assign: func(td *goquery.Selection, s *models.Submission) (err error) {
			s.ProblemID, err = LinkTail(td)
			return err
		},
	},
	{
		name:   "user_id",
		locate: atColumn(2),
		assign: func(td *goquery.Selection, s *models.Submission) (err error) {
			s.UserID, err = LinkTail(td)
			return err
		},
	},
	{
		name:     "language",
		locate:   atColumn(3),
		optional: true,
		assign: func(td *goquery.Selection, s *models.Submission) error {
			s.Language, _ = FirstText(td)
			return nil
		},
	},
	{
		name:   "point",
		locate: atColumn(4),
		assign: func(td *goquery.Selection, s *models.Submission) (err error) {
			text, err := RequireText(td)
			if err != nil {
				return err
			}
			s.Point, err = ParsePoint(text)
			return err
		},
	},
	{
		name:   "length",
		locate: atColumn(5),
		assign: func(td *goquery.Selection, s *models.Submission) (err error) {
			text, err := RequireText(td)
			if err != nil {
				return err
			}
			s.Length, err = StripUnitAndParseInt(text, "Byte")
			return err
		},
	},
	{
		name:   "result",
		locate: atColumn(6),
		assign: func(td *goquery.Selection, s *models.Submission) (err error) {
			s.Result, err = RequireText(td)
			return err
		},
	},
	{
		name:     "execution_time",
		locate:   atColumn(7),
		optional: true,
		assign: func(td *goquery.Selection, s *models.Submission) error {
			text, ok := FirstText(td)
			if !ok {
				return nil
			}
			if ms, err := StripUnitAndParseInt(text, "ms"); err == nil {
				s.ExecutionTime = &ms
			}
			return nil
		},
	},
	{
		name:   "id",
		locate: anyLink(submissionDetailPattern),
		assign: func(a *goquery.Selection, s *models.Submission) error {
			href, err := Href(a)
			if err != nil {
				return err
			}
			tail := strings.TrimSpace(URLTail(href))
			id, err := strconv.ParseUint(tail, 10, 64)
			if err != nil {
				return &ValueError{Text: tail, Err: err}
			}
			s.ID = id
			return nil
		},
	},
}

func scrapeSubmissionRow(row *goquery.Selection, contestID string) (models.Submission, error) {
	s := models.Submission{ContestID: contestID}
	for _, field := range submissionSchema {
		node, err := field.locate(row)
		if err != nil {
			if field.optional {
				continue
			}
			return models.Submission{}, fmt.Errorf("%s: %w", field.name, err)
		}
		if err := field.assign(node, &s); err != nil {
			return models.Submission{}, fmt.Errorf("%s: %w", field.name, err)
		}
	}
	return s, nil
}

// ScrapeSubmissions reads every row of the first table in doc. One malformed
// row fails the whole listing.
func ScrapeSubmissions(doc *goquery.Document, contestID string) ([]models.Submission, error) {
	tbody, err := firstTableBody(doc)
	if err != nil {
		return nil, err
	}

	rows := tbody.Find("tr")
	submissions := make([]models.Submission, 0, rows.Length())
	for i := range rows.Nodes {
		s, err := scrapeSubmissionRow(rows.Eq(i), contestID)
		if err != nil {
			return nil, fmt.Errorf("submission row %d: %w", i, err)
		}
		submissions = append(submissions, s)
	}
	return submissions, nil
}

// ScrapeSubmissionPageCount returns the highest page referenced by a
// "page=N" anchor in doc. A listing without such anchors is an error wrapping
// ErrNoPageLinks.
func ScrapeSubmissionPageCount(doc *goquery.Document) (uint32, error) {
	var (
		maxPage uint32
		found   bool
	)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !pageLinkPattern.MatchString(href) {
			return
		}
		page, err := strconv.ParseUint(href[strings.LastIndex(href, "=")+1:], 10, 32)
		if err != nil {
			return
		}
		if !found || uint32(page) > maxPage {
			maxPage = uint32(page)
			found = true
		}
	})
	if !found {
		return 0, &StructureError{Selector: "a[href$=page=N]", Err: ErrNoPageLinks}
	}
	return maxPage, nil
}

// ScrapeSubmissionCode returns the source text of a submission detail page.
func ScrapeSubmissionCode(doc *goquery.Document) (string, error) {
	pre := doc.Find("pre#submission-code").First()
	if pre.Length() == 0 {
		return "", &StructureError{Selector: "pre#submission-code"}
	}
	code := pre.Text()
	if code == "" {
		return "", &StructureError{Selector: "pre#submission-code text()"}
	}
	return code, nil
}
