package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-atcoder/models"
)

// DualWriter writes every batch to a CSV file and to a JSONL file next to it.
// The CSV holds the listing columns only; the JSONL keeps the full record,
// including code when a submission carries it.
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
	jsonPath   string
	mu         sync.Mutex
}

// NewDualWriter opens csvFilename and its JSONL sibling, named by
// JSONLPath. Nothing is left open when either file fails to open.
func NewDualWriter(csvFilename string) (*DualWriter, error) {
	jsonPath := JSONLPath(csvFilename)

	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create CSV writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonPath)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create JSONL writer: %w", err)
	}

	return &DualWriter{
		csvWriter:  csvWriter,
		jsonWriter: jsonWriter,
		jsonPath:   jsonPath,
	}, nil
}

// JSONLPath returns the JSONL file written alongside csvFilename:
// submissions.csv becomes submissions.jsonl.
func JSONLPath(csvFilename string) string {
	ext := filepath.Ext(csvFilename)
	if strings.EqualFold(ext, ".csv") {
		return strings.TrimSuffix(csvFilename, ext) + ".jsonl"
	}
	return csvFilename + ".jsonl"
}

// JSONPath reports where the JSONL copy is written.
func (dw *DualWriter) JSONPath() string {
	return dw.jsonPath
}

// Write appends submissions to both files. A CSV failure skips the JSONL write
// so the two files never diverge by more than the failed batch.
func (dw *DualWriter) Write(submissions []*models.Submission) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.csvWriter.Write(submissions); err != nil {
		return fmt.Errorf("CSV write: %w", err)
	}
	if err := dw.jsonWriter.Write(submissions); err != nil {
		return fmt.Errorf("JSONL write to %s: %w", dw.jsonPath, err)
	}
	return nil
}

// Close closes both files and reports every failure.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.csvWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("CSV close: %w", err))
	}
	if err := dw.jsonWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("JSONL close: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks that both files received data.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("CSV validation: %w", err))
	}
	if err := dw.jsonWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("JSONL validation: %w", err))
	}
	return errors.Join(errs...)
}
