package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/knowledge-engine/questionsim/internal/config"
	"github.com/knowledge-engine/questionsim/internal/search"
)

var (
	ErrMissingColumns    = errors.New("missing required columns")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file has no header row")
	ErrTooLarge          = errors.New("file too large")
)

// Result is a fully validated corpus ready to be fitted.
type Result struct {
	Source    string
	Questions []search.Question
	Columns   []string

	// Dropped counts rows skipped for having no question text.
	Dropped int
}

// CorpusLoader reads a corpus from a path or URL
type CorpusLoader interface {
	Load(ctx context.Context, source string) (*Result, error)
}

// Loader reads .xlsx, .csv and .tsv spreadsheets with an id and a
// question column.
type Loader struct {
	cfg     config.IngestConfig
	fetcher *Fetcher
	logger  *logrus.Entry
}

func NewLoader(cfg config.IngestConfig, logger *logrus.Entry) *Loader {
	return &Loader{
		cfg:     cfg,
		fetcher: NewFetcher(cfg.FetchTimeout, cfg.MaxFetchBytes),
		logger:  logger,
	}
}

// Load reads source, validates its header and returns every row that has
// question text. Any failure rejects the whole file.
func (l *Loader) Load(ctx context.Context, source string) (*Result, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errors.New("no source given")
	}

	data, format, err := l.read(ctx, source)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch format {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(data, l.cfg.Sheet)
	case ".csv":
		rows, err = readDelimited(data, ',')
	case ".tsv":
		rows, err = readDelimited(data, '\t')
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", source, err)
	}

	result, err := l.parseRows(rows)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", source, err)
	}
	result.Source = source

	l.logger.WithFields(logrus.Fields{
		"source":    source,
		"questions": len(result.Questions),
		"dropped":   result.Dropped,
	}).Info("Corpus loaded")
	return result, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, string, error) {
	if isRemote(source) {
		res, err := l.fetcher.Fetch(ctx, source)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s: %w", source, err)
		}
		return res.Body, remoteFormat(source, res.ContentType), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", source, err)
	}
	return data, strings.ToLower(filepath.Ext(source)), nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// remoteFormat prefers the URL path extension and falls back to the
// response content type.
func remoteFormat(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
			return ext
		}
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "text/csv":
		return ".csv"
	case "text/tab-separated-values":
		return ".tsv"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	}
	return ""
}

func readXLSX(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyFile
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readDelimited(data []byte, comma rune) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse rows: %w", err)
		}
		rows = append(rows, record)
	}
}

func (l *Loader) parseRows(rows [][]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	header := rows[0]
	idCol := columnIndex(header, l.cfg.IDColumn)
	questionCol := columnIndex(header, l.cfg.QuestionColumn)

	var missing []string
	if idCol < 0 {
		missing = append(missing, l.cfg.IDColumn)
	}
	if questionCol < 0 {
		missing = append(missing, l.cfg.QuestionColumn)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: file must have %q and %q columns, missing %s",
			ErrMissingColumns, l.cfg.IDColumn, l.cfg.QuestionColumn, strings.Join(missing, ", "))
	}

	result := &Result{
		Questions: make([]search.Question, 0, len(rows)-1),
		Columns:   append([]string(nil), header...),
	}
	for _, row := range rows[1:] {
		text := cell(row, questionCol)
		if l.cfg.StripHTML {
			text = StripHTML(text)
		}
		if strings.TrimSpace(text) == "" {
			result.Dropped++
			continue
		}
		result.Questions = append(result.Questions, search.Question{
			ID:   strings.TrimSpace(cell(row, idCol)),
			Text: text,
		})
	}
	return result, nil
}

func columnIndex(header []string, name string) int {
	want := strings.TrimSpace(name)
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
