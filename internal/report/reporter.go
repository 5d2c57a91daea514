// Package report collects cleanup records from all repository workers and
// turns them into the run's audit artifacts.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"branchwarden/internal/logging"
	"branchwarden/internal/model"

	"go.uber.org/zap"
)

const (
	JSONFileName    = "report.json"
	CSVFileName     = "report.csv"
	SummaryFileName = "summary.md"
)

type Options struct {
	OutputDir string
	WriteJSON bool
	WriteCSV  bool
	DryRun    bool
	Now       func() time.Time
	Logger    *zap.Logger
}

// Reporter is append-only. Summaries are always recomputed from the full
// record set.
type Reporter struct {
	opts   Options
	logger *zap.Logger

	mu         sync.Mutex
	records    []model.CleanupRecord
	prunes     []model.PruneRecord
	repoErrs   []RepositoryError
	startedAt  time.Time
	finishedAt time.Time

	// writeMu serializes WriteReports and guards its cached outcome.
	writeMu    sync.Mutex
	written    bool
	writtenDir string
	writeErr   error
}

func New(opts Options) *Reporter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reporter{
		opts:      opts,
		logger:    logging.OrNop(opts.Logger),
		startedAt: opts.Now().UTC(),
	}
}

// RunID identifies the run; it also names the run's output directory.
func (r *Reporter) RunID() string {
	return r.startedAt.Format(RunIDLayout)
}

func (r *Reporter) AddRecord(rec model.CleanupRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *Reporter) AddPrune(recs ...model.PruneRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prunes = append(r.prunes, recs...)
}

func (r *Reporter) AddRepositoryError(repo model.RepositoryRef, stage string, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repoErrs = append(r.repoErrs, RepositoryError{
		Organization: repo.Owner,
		Repository:   repo.Name,
		Stage:        stage,
		Error:        err.Error(),
	})
}

func (r *Reporter) RepositoryErrors() []RepositoryError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.repoErrs)
}

// Records returns a copy of all records in arrival order.
func (r *Reporter) Records() []model.CleanupRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.records)
}

func (r *Reporter) Prunes() []model.PruneRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.prunes)
}

func (r *Reporter) GetSummary() Summary {
	return Summarize(r.Records(), r.Prunes())
}

// HasErrors reports whether any record carries the error action or any
// repository failed outside candidate processing.
func (r *Reporter) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.repoErrs) > 0 {
		return true
	}
	return slices.ContainsFunc(r.records, func(rec model.CleanupRecord) bool {
		return rec.Action == model.ActionError
	})
}

// Finish stamps the finish time. Later calls are ignored.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finishedAt.IsZero() {
		r.finishedAt = r.opts.Now().UTC()
	}
}

// Document snapshots the run.
func (r *Reporter) Document() *Document {
	r.mu.Lock()
	records := slices.Clone(r.records)
	prunes := slices.Clone(r.prunes)
	repoErrs := slices.Clone(r.repoErrs)
	finished := r.finishedAt
	r.mu.Unlock()

	if records == nil {
		records = []model.CleanupRecord{}
	}
	if prunes == nil {
		prunes = []model.PruneRecord{}
	}
	if repoErrs == nil {
		repoErrs = []RepositoryError{}
	}
	return &Document{
		Run: RunInfo{
			ID:         r.RunID(),
			DryRun:     r.opts.DryRun,
			StartedAt:  r.startedAt,
			FinishedAt: finished,
		},
		Summary: Summarize(records, prunes),
		Records: records,
		Prunes:  prunes,
		Errors:  repoErrs,
	}
}

// WriteReports persists the run directory <OutputDir>/<RunID> with the JSON
// document, the CSV export and summary.md. Under dry run nothing is written
// and the intended paths are logged. Reports are written at most once;
// later calls return the outcome of the first attempt, error included.
func (r *Reporter) WriteReports() (string, error) {
	r.Finish()

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if !r.written {
		r.writtenDir, r.writeErr = r.writeReports()
		r.written = true
	}
	return r.writtenDir, r.writeErr
}

func (r *Reporter) writeReports() (string, error) {
	dir := filepath.Join(r.opts.OutputDir, r.RunID())
	doc := r.Document()

	if r.opts.DryRun {
		r.logger.Info("dry run: reports not written",
			zap.String("dir", dir),
			zap.Int("records", len(doc.Records)),
		)
		return "", nil
	}

	mgr := NewManager()
	closeOnErr := func(err error) (string, error) {
		_ = mgr.Close()
		return "", err
	}
	if r.opts.WriteJSON {
		s, err := NewJSONSink(filepath.Join(dir, JSONFileName))
		if err != nil {
			return closeOnErr(err)
		}
		_ = mgr.AddSink(s)
	}
	if r.opts.WriteCSV {
		s, err := NewCSVSink(filepath.Join(dir, CSVFileName))
		if err != nil {
			return closeOnErr(err)
		}
		_ = mgr.AddSink(s)
	}
	s, err := NewSummarySink(filepath.Join(dir, SummaryFileName))
	if err != nil {
		return closeOnErr(err)
	}
	_ = mgr.AddSink(s)

	writeErr := mgr.Write(doc)
	closeErr := mgr.Close()
	if writeErr != nil {
		return "", writeErr
	}
	if closeErr != nil {
		return "", closeErr
	}

	r.logger.Info("reports written", zap.String("dir", dir), zap.Int("files", mgr.Len()))
	return dir, nil
}

// PrintSummary writes the console summary for the current records.
func (r *Reporter) PrintSummary(w io.Writer, plain bool) error {
	if err := PrintSummary(w, r.Document(), plain); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}
	return nil
}
