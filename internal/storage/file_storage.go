package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/knowledge-engine/questionsim/internal/search"
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"

	SheetName = "Similar Questions"
)

var (
	ErrNothingToExport   = errors.New("no results to export")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Columns is the header of an exported result table.
var Columns = []string{"Similarity %", "Question ID", "Question"}

// ExportRequest is a ranked result list for one query question.
type ExportRequest struct {
	QueryID   string
	QueryText string
	Matches   []search.Match
	Format    string
	CreatedAt time.Time
}

// ResultExporter defines the interface for saving result tables
type ResultExporter interface {
	Export(req ExportRequest) (string, error)
	Close() error
}

// FileExporter implements ResultExporter by writing files under baseDir
type FileExporter struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileExporter creates the export directory if needed
func NewFileExporter(baseDir string) (*FileExporter, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &FileExporter{
		baseDir: baseDir,
	}, nil
}

// Export writes the table and returns the path of the new file.
func (fe *FileExporter) Export(req ExportRequest) (string, error) {
	if len(req.Matches) == 0 {
		return "", ErrNothingToExport
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatXLSX && format != FormatCSV {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	fe.mu.Lock()
	defer fe.mu.Unlock()

	base := fmt.Sprintf("similar_questions_%s_%s", safeFilename(req.QueryID), createdAt.Format("20060102_150405"))
	path := fe.uniquePath(base, format)
	rows := Table(req)

	var err error
	switch format {
	case FormatXLSX:
		err = writeXLSX(path, rows)
	case FormatCSV:
		err = writeCSV(path, rows)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// Close is a no-op for file exports
func (fe *FileExporter) Close() error {
	return nil
}

// Table lays out the query header block followed by one row per match,
// using the values as displayed.
func Table(req ExportRequest) [][]string {
	rows := [][]string{
		Columns,
		{"Original Question:", "", ""},
		{"ID: " + req.QueryID, "", req.QueryText},
		{"", "", ""},
	}
	for _, m := range req.Matches {
		rows = append(rows, []string{FormatPercent(m.Percent), m.ID, m.Text})
	}
	return rows
}

// FormatPercent renders a percentage with one decimal, e.g. "87.5%".
func FormatPercent(percent float64) string {
	return fmt.Sprintf("%.1f%%", percent)
}

func (fe *FileExporter) uniquePath(base, ext string) string {
	path := filepath.Join(fe.baseDir, base+"."+ext)
	for i := 2; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		path = filepath.Join(fe.baseDir, fmt.Sprintf("%s_%d.%s", base, i, ext))
	}
}

func writeXLSX(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(SheetName, ref, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	widths := map[string]float64{"A": 15, "B": 15, "C": 80}
	for col, width := range widths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// BOM so spreadsheet apps pick UTF-8 for Arabic text
	if _, err := file.WriteString("\xef\xbb\xbf"); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return file.Close()
}

// safeFilename keeps letters and digits of any script and replaces the rest
func safeFilename(id string) string {
	var b strings.Builder
	n := 0
	for _, r := range id {
		if n >= 60 {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
		n++
	}
	if b.Len() == 0 {
		return "query"
	}
	return b.String()
}
