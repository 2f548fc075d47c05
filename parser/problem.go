package parser

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-atcoder/models"
)

// ScrapeProblems reads the task list of contestID.
func ScrapeProblems(doc *goquery.Document, contestID string) ([]models.Problem, error) {
	tbody, err := firstTableBody(doc)
	if err != nil {
		return nil, err
	}

	rows := tbody.Find("tr")
	problems := make([]models.Problem, 0, rows.Length())
	for i := range rows.Nodes {
		p, err := scrapeProblemRow(rows.Eq(i), contestID)
		if err != nil {
			return nil, fmt.Errorf("problem row %d: %w", i, err)
		}
		problems = append(problems, p)
	}
	return problems, nil
}

func scrapeProblemRow(row *goquery.Selection, contestID string) (models.Problem, error) {
	p := models.Problem{ContestID: contestID}

	td, err := NthCell(row, 0)
	if err != nil {
		return p, fmt.Errorf("position: %w", err)
	}
	if p.Position, err = RequireText(td); err != nil {
		return p, fmt.Errorf("position: %w", err)
	}

	td, err = NthCell(row, 1)
	if err != nil {
		return p, fmt.Errorf("title: %w", err)
	}
	a, err := FirstLink(td)
	if err != nil {
		return p, fmt.Errorf("title: %w", err)
	}
	title, err := RequireText(a)
	if err != nil {
		return p, fmt.Errorf("title: %w", err)
	}
	p.Title = p.Position + ". " + title

	href, err := Href(a)
	if err != nil {
		return p, fmt.Errorf("id: %w", err)
	}
	p.ID = URLTail(href)
	return p, nil
}
