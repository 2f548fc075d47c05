package parser

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-atcoder/models"
)

// ScrapeContests reads the contest archive table.
func ScrapeContests(doc *goquery.Document) ([]models.Contest, error) {
	tbody, err := firstTableBody(doc)
	if err != nil {
		return nil, err
	}

	rows := tbody.Find("tr")
	contests := make([]models.Contest, 0, rows.Length())
	for i := range rows.Nodes {
		c, err := scrapeContestRow(rows.Eq(i))
		if err != nil {
			return nil, fmt.Errorf("contest row %d: %w", i, err)
		}
		contests = append(contests, c)
	}
	return contests, nil
}

func scrapeContestRow(row *goquery.Selection) (models.Contest, error) {
	var c models.Contest

	td, err := NthCell(row, 0)
	if err != nil {
		return c, fmt.Errorf("start: %w", err)
	}
	text, err := RequireText(td)
	if err != nil {
		return c, fmt.Errorf("start: %w", err)
	}
	if c.StartEpochSecond, err = ParseLocalizedDatetime(text, DateTimeLayout); err != nil {
		return c, fmt.Errorf("start: %w", err)
	}

	td, err = NthCell(row, 1)
	if err != nil {
		return c, fmt.Errorf("title: %w", err)
	}
	a, err := FirstLink(td)
	if err != nil {
		return c, fmt.Errorf("title: %w", err)
	}
	if c.Title, err = RequireText(a); err != nil {
		return c, fmt.Errorf("title: %w", err)
	}
	href, err := Href(a)
	if err != nil {
		return c, fmt.Errorf("id: %w", err)
	}
	c.ID = URLTail(href)

	td, err = NthCell(row, 2)
	if err != nil {
		return c, fmt.Errorf("duration: %w", err)
	}
	if text, err = RequireText(td); err != nil {
		return c, fmt.Errorf("duration: %w", err)
	}
	if c.DurationSecond, err = ParseClockDuration(text); err != nil {
		return c, fmt.Errorf("duration: %w", err)
	}

	td, err = NthCell(row, 3)
	if err != nil {
		return c, fmt.Errorf("rate_change: %w", err)
	}
	if c.RateChange, err = RequireText(td); err != nil {
		return c, fmt.Errorf("rate_change: %w", err)
	}
	return c, nil
}
