package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxBytes   = 100 * 1024 * 1024
	defaultMaxBackups = 7
	defaultMaxAgeDays = 30
	backupTimeLayout  = "20060102T150405.000"
)

// rollingFile is an append-only file that is renamed to a timestamped backup
// once it grows past maxBytes.
type rollingFile struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int
	maxAge     time.Duration
	now        func() time.Time

	file *os.File
	size int64
}

func newRollingFile(path string, maxBytes int64, maxBackups, maxAgeDays int) (*rollingFile, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	if maxAgeDays <= 0 {
		maxAgeDays = defaultMaxAgeDays
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	return &rollingFile{
		path:       path,
		maxBytes:   maxBytes,
		maxBackups: maxBackups,
		maxAge:     time.Duration(maxAgeDays) * 24 * time.Hour,
		now:        time.Now,
	}, nil
}

func (r *rollingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.open(); err != nil {
		return 0, err
	}
	if r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.roll(); err != nil {
			return 0, err
		}
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rollingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.size = 0
	return err
}

func (r *rollingFile) open() error {
	if r.file != nil {
		return nil
	}
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	r.file = file
	r.size = info.Size()
	return nil
}

func (r *rollingFile) roll() error {
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("close audit log: %w", err)
		}
		r.file = nil
	}
	r.size = 0

	backup := fmt.Sprintf("%s.%s", r.path, r.now().UTC().Format(backupTimeLayout))
	if err := os.Rename(r.path, backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	r.prune()
	return nil
}

// backups lists rotated files, newest first.
func (r *rollingFile) backups() []string {
	matches, err := filepath.Glob(r.path + ".*")
	if err != nil {
		return nil
	}
	prefix := r.path + "."
	out := matches[:0]
	for _, m := range matches {
		if _, err := time.Parse(backupTimeLayout, strings.TrimPrefix(m, prefix)); err == nil {
			out = append(out, m)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

func (r *rollingFile) prune() {
	cutoff := r.now().Add(-r.maxAge)
	for i, path := range r.backups() {
		if i >= r.maxBackups {
			_ = os.Remove(path)
			continue
		}
		if info, err := os.Stat(path); err == nil && info.ModTime().Before(cutoff) {
			_ = os.Remove(path)
		}
	}
}
