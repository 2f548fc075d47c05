// Package parser turns AtCoder pages into records.
package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-atcoder/models"
)

// ValidateSubmission ensures a scraped submission carries its identity fields.
func ValidateSubmission(s *models.Submission) error {
	if s == nil {
		return fmt.Errorf("submission is nil")
	}
	if s.ID == 0 {
		return fmt.Errorf("submission missing id")
	}
	if strings.TrimSpace(s.ContestID) == "" {
		return fmt.Errorf("submission %d missing contest id", s.ID)
	}
	if strings.TrimSpace(s.ProblemID) == "" {
		return fmt.Errorf("submission %d missing problem id", s.ID)
	}
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("submission %d missing user id", s.ID)
	}
	if strings.TrimSpace(s.Result) == "" {
		return fmt.Errorf("submission %d missing result", s.ID)
	}
	return nil
}
