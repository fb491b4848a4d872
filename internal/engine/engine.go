package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/questionsim/internal/config"
	"github.com/knowledge-engine/questionsim/internal/ingest"
	"github.com/knowledge-engine/questionsim/internal/search"
	"github.com/knowledge-engine/questionsim/internal/storage"
)

var (
	ErrNotLoaded       = errors.New("no corpus loaded")
	ErrLoadInProgress  = errors.New("a corpus load is already in progress")
	ErrInvalidPosition = errors.New("question index out of range")
	ErrNoResults       = errors.New("no similar questions above threshold")
)

// Snapshot describes the corpus behind the current index
type Snapshot struct {
	ID             string        `json:"id"`
	Source         string        `json:"source"`
	Questions      int           `json:"questions"`
	Dropped        int           `json:"dropped"`
	VocabularySize int           `json:"vocabulary_size"`
	LoadedAt       time.Time     `json:"loaded_at"`
	Duration       time.Duration `json:"duration"`
}

type Status struct {
	Loading       bool      `json:"loading"`
	LoadingSource string    `json:"loading_source,omitempty"`
	Snapshot      *Snapshot `json:"snapshot,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	Stats         Stats     `json:"stats"`
}

type Stats struct {
	Loads     int64     `json:"loads"`
	Queries   int64     `json:"queries"`
	Exports   int64     `json:"exports"`
	StartTime time.Time `json:"start_time"`
}

// QuestionView is a corpus entry together with its position
type QuestionView struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Text  string `json:"question"`
}

type QueryResult struct {
	Query     QuestionView   `json:"query"`
	Threshold float64        `json:"threshold"`
	Matches   []search.Match `json:"matches"`
}

// Engine owns the loaded corpus and serializes loads against queries.
// Each load builds a fresh index and swaps it in whole, so queries only
// ever see a completely fitted snapshot.
type Engine struct {
	Config   *config.Config
	Logger   *logrus.Entry
	Loader   ingest.CorpusLoader
	Exporter storage.ResultExporter

	// OnLoadComplete, if set, is called when a background load finishes.
	OnLoadComplete func(Snapshot, error)

	mu            sync.RWMutex
	index         *search.Index
	snapshot      *Snapshot
	loading       bool
	loadingSource string
	cancelLoad    context.CancelFunc
	lastError     string

	loads     atomic.Int64
	queries   atomic.Int64
	exports   atomic.Int64
	startTime time.Time
}

func NewEngine(cfg *config.Config, logger *logrus.Entry, loader ingest.CorpusLoader, exporter storage.ResultExporter) *Engine {
	return &Engine{
		Config:    cfg,
		Logger:    logger,
		Loader:    loader,
		Exporter:  exporter,
		startTime: time.Now(),
	}
}

// Load ingests source and fits a new index, blocking until done. The
// previous snapshot stays queryable until the new one replaces it.
func (e *Engine) Load(ctx context.Context, source string) (Snapshot, error) {
	ctx, err := e.beginLoad(ctx, source)
	if err != nil {
		return Snapshot{}, err
	}
	return e.runLoad(ctx, source)
}

// StartLoad runs Load in the background. Completion is reported via
// Status and OnLoadComplete.
func (e *Engine) StartLoad(source string) error {
	ctx, err := e.beginLoad(context.Background(), source)
	if err != nil {
		return err
	}

	go func() {
		snap, err := e.runLoad(ctx, source)
		if e.OnLoadComplete != nil {
			e.OnLoadComplete(snap, err)
		}
	}()
	return nil
}

// CancelLoad aborts an in-flight load. The current snapshot is kept.
func (e *Engine) CancelLoad() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loading && e.cancelLoad != nil {
		e.cancelLoad()
	}
}

func (e *Engine) beginLoad(parent context.Context, source string) (context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loading {
		return nil, ErrLoadInProgress
	}
	ctx, cancel := context.WithCancel(parent)
	e.loading = true
	e.loadingSource = source
	e.cancelLoad = cancel
	return ctx, nil
}

func (e *Engine) runLoad(ctx context.Context, source string) (Snapshot, error) {
	log := e.Logger.WithField("source", source)
	log.Info("Loading corpus")

	ix, snap, err := e.build(ctx, source)
	if err == nil {
		// fitting itself cannot be interrupted, so honour a cancel here
		err = ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLoad()
	e.loading = false
	e.loadingSource = ""
	e.cancelLoad = nil

	if err != nil {
		e.lastError = err.Error()
		log.WithError(err).Error("Failed to load corpus")
		return Snapshot{}, err
	}

	e.index = ix
	e.snapshot = &snap
	e.lastError = ""
	e.loads.Add(1)

	log.WithFields(logrus.Fields{
		"snapshot":   snap.ID,
		"questions":  snap.Questions,
		"dropped":    snap.Dropped,
		"vocabulary": snap.VocabularySize,
		"duration":   snap.Duration.String(),
	}).Info("Corpus ready")
	return snap, nil
}

func (e *Engine) build(ctx context.Context, source string) (*search.Index, Snapshot, error) {
	start := time.Now()

	result, err := e.Loader.Load(ctx, source)
	if err != nil {
		return nil, Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Snapshot{}, err
	}

	sim := e.Config.Similarity
	ix := search.NewIndex(
		search.WithNgramRange(sim.NgramMin, sim.NgramMax),
		search.WithMaxFeatures(sim.MaxFeatures),
		search.WithLogger(e.Logger.WithField("component", "index")),
	)
	ix.Fit(result.Questions)

	return ix, Snapshot{
		ID:             uuid.NewString(),
		Source:         source,
		Questions:      ix.Len(),
		Dropped:        result.Dropped,
		VocabularySize: ix.VocabularySize(),
		LoadedAt:       time.Now(),
		Duration:       time.Since(start),
	}, nil
}

func (e *Engine) current() (*search.Index, *Snapshot) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index, e.snapshot
}

func (e *Engine) IsLoading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loading
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Status{
		Loading:       e.loading,
		LoadingSource: e.loadingSource,
		LastError:     e.lastError,
		Stats: Stats{
			Loads:     e.loads.Load(),
			Queries:   e.queries.Load(),
			Exports:   e.exports.Load(),
			StartTime: e.startTime,
		},
	}
	if e.snapshot != nil {
		snap := *e.snapshot
		st.Snapshot = &snap
	}
	return st
}

// Questions lists the corpus in order, keeping entries whose text or ID
// contains filter, case-insensitively. An empty filter keeps everything.
func (e *Engine) Questions(filter string) ([]QuestionView, error) {
	ix, _ := e.current()
	if ix == nil {
		return nil, ErrNotLoaded
	}

	needle := strings.ToLower(strings.TrimSpace(filter))
	views := make([]QuestionView, 0, ix.Len())
	for i, q := range ix.Questions() {
		if needle != "" &&
			!strings.Contains(strings.ToLower(q.Text), needle) &&
			!strings.Contains(strings.ToLower(q.ID), needle) {
			continue
		}
		views = append(views, QuestionView{Index: i, ID: q.ID, Text: q.Text})
	}
	return views, nil
}

// Similar ranks the corpus against the question at pos, keeping at most
// the configured TopN matches at or above thresholdPercent.
func (e *Engine) Similar(pos int, thresholdPercent float64) (*QueryResult, error) {
	ix, _ := e.current()
	if ix == nil {
		return nil, ErrNotLoaded
	}
	q, ok := ix.Question(pos)
	if !ok {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPosition, pos, ix.Len())
	}

	threshold := search.ClampThreshold(thresholdPercent)
	e.queries.Add(1)

	return &QueryResult{
		Query:     QuestionView{Index: pos, ID: q.ID, Text: q.Text},
		Threshold: threshold,
		Matches:   ix.Query(pos, e.Config.Similarity.TopN, threshold),
	}, nil
}

// Export writes the result of Similar through the configured exporter
// and returns the file path. An empty format uses the configured default.
func (e *Engine) Export(pos int, thresholdPercent float64, format string) (string, error) {
	res, err := e.Similar(pos, thresholdPercent)
	if err != nil {
		return "", err
	}
	if len(res.Matches) == 0 {
		return "", ErrNoResults
	}
	if format == "" {
		format = e.Config.Export.Format
	}

	path, err := e.Exporter.Export(storage.ExportRequest{
		QueryID:   res.Query.ID,
		QueryText: res.Query.Text,
		Matches:   res.Matches,
		Format:    format,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("export results: %w", err)
	}
	e.exports.Add(1)

	e.Logger.WithFields(logrus.Fields{
		"query":   res.Query.ID,
		"matches": len(res.Matches),
		"path":    path,
	}).Info("Exported similar questions")
	return path, nil
}
