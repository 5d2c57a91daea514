package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

func createFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// JSONSink writes the whole document as indented JSON.
type JSONSink struct {
	mu   sync.Mutex
	file *os.File
}

func NewJSONSink(path string) (*JSONSink, error) {
	f, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return &JSONSink{file: f}, nil
}

func (s *JSONSink) Write(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.file)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

var csvHeader = []string{
	"organization",
	"repository",
	"branch",
	"action",
	"head_sha",
	"merged_pr_number",
	"merged_at",
	"author",
	"default_branch",
	"protected",
	"ancestry",
	"backup_tag",
	"error",
	"dry_run",
	"recorded_at",
}

// CSVSink flattens records, one row per candidate.
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
}

func NewCSVSink(path string) (*CSVSink, error) {
	f, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return &CSVSink{file: f}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (s *CSVSink) Write(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := csv.NewWriter(s.file)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range doc.Records {
		row := []string{
			r.Organization,
			r.Repository,
			r.Branch,
			string(r.Action),
			r.HeadSHA,
			strconv.Itoa(r.MergedPRNumber),
			formatTime(r.MergedAt),
			r.Author,
			r.DefaultBranch,
			strconv.FormatBool(r.Protected),
			r.Ancestry,
			r.BackupTag,
			r.Error,
			strconv.FormatBool(r.DryRun),
			formatTime(r.RecordedAt),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
