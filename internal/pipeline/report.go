package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
)

const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// RunRecord is one processed item of a step.
type RunRecord struct {
	Time      string `csv:"time"`
	Step      string `csv:"step"`
	Site      string `csv:"site"`
	Satellite string `csv:"satellite"`
	Input     string `csv:"input"`
	Output    string `csv:"output"`
	Status    string `csv:"status"`
	Error     string `csv:"error"`
	Duration  string `csv:"duration"`
}

// Report collects the records of a run until they are flushed.
type Report struct {
	mu      sync.Mutex
	dir     string
	records []*RunRecord
}

func NewReport(dir string) *Report {
	return &Report{dir: dir}
}

func (r *Report) Add(rec RunRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, &rec)
}

// Path is the report file of day.
func (r *Report) Path(day time.Time) string {
	return filepath.Join(r.dir, day.Format("2006-01-02")+".csv")
}

// Flush appends the pending records to <dir>/<YYYY-MM-DD>.csv, writing the
// header only when the file is new.
func (r *Report) Flush(now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(r.dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create report folder: %w", err)
	}

	filePath := r.Path(now)
	fileExists := false
	if _, err := os.Stat(filePath); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if fileExists {
		err = gocsv.MarshalCSVWithoutHeaders(&r.records, writer)
	} else {
		err = gocsv.MarshalCSV(&r.records, writer)
	}
	if err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	r.records = nil
	return filePath, nil
}

// ReadReport loads every record of a report file.
func ReadReport(path string) ([]*RunRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var rows []*RunRecord
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return rows, nil
}
