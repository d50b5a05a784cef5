package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coachpo/befh/errs"
)

// fileStore appends rows to one CSV file per table. Daily rotation falls out
// of the _YYYYMMDD suffix already baked into trade table names.
type fileStore struct {
	dir   string
	mu    sync.Mutex
	files map[string]*csvFile
}

type csvFile struct {
	handle *os.File
	writer *csv.Writer
}

// NewCSV creates a CSV sink writing one file per table under dir.
func NewCSV(dir string) (Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv directory %s: %w", dir, err)
	}
	return &fileStore{dir: dir, files: make(map[string]*csvFile)}, nil
}

func (f *fileStore) Name() string { return "csv" }

// Create opens the table's file and writes the header when the file is new.
func (f *fileStore) Create(_ context.Context, table string, columns []string, _ []ColumnType, _ []int, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.openLocked(table, columns)
	return err
}

func (f *fileStore) openLocked(table string, columns []string) (*csvFile, error) {
	if file, ok := f.files[table]; ok {
		return file, nil
	}
	path := filepath.Join(f.dir, table+".csv")
	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	handle, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errs.New("", errs.CodeSink,
			errs.WithMessage(fmt.Sprintf("open csv file %s", path)), errs.WithCause(err))
	}
	file := &csvFile{handle: handle, writer: csv.NewWriter(handle)}
	if fresh && len(columns) > 0 {
		if err := file.writer.Write(columns); err != nil {
			handle.Close()
			return nil, err
		}
		file.writer.Flush()
	}
	f.files[table] = file
	return file, nil
}

func (f *fileStore) Insert(_ context.Context, row Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, err := f.openLocked(row.Table, row.Columns)
	if err != nil {
		return err
	}
	record := make([]string, len(row.Values))
	for i, v := range row.Values {
		record[i] = fmt.Sprintf("%v", v)
	}
	if err := file.writer.Write(record); err != nil {
		return errs.New("", errs.CodeSink,
			errs.WithMessage(fmt.Sprintf("append csv row to %s", row.Table)), errs.WithCause(err))
	}
	file.writer.Flush()
	return file.writer.Error()
}

// Select is unsupported on the CSV sink.
func (f *fileStore) Select(context.Context, Query) ([][]string, error) { return nil, nil }

// Delete is unsupported on the CSV sink.
func (f *fileStore) Delete(context.Context, string, string) error { return nil }

func (f *fileStore) Commit(context.Context) error { return nil }

func (f *fileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for _, file := range f.files {
		file.writer.Flush()
		if err := file.handle.Close(); err != nil && first == nil {
			first = err
		}
	}
	f.files = make(map[string]*csvFile)
	return first
}
