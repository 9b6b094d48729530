package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const maxCachedRecords = 512

// FileRepository 以 JSON Lines 追加写入审计记录，并在内存中缓存最近的记录。
type FileRepository struct {
	mu       sync.RWMutex
	dataFile string
	nextID   int64
	records  []Record
}

// NewFileRepository 创建文件仓库，并从已有文件恢复最近的记录。
func NewFileRepository(path string) (*FileRepository, error) {
	if path == "" {
		path = filepath.Join("data", "audit.jsonl")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建审计目录失败: %w", err)
	}
	repo := &FileRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录审计信息。
func (f *FileRepository) Save(_ context.Context, record Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	record.ID = f.nextID

	file, err := os.OpenFile(f.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开审计日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化审计记录失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}

	f.records = append([]Record{record}, f.records...)
	if len(f.records) > maxCachedRecords {
		f.records = f.records[:maxCachedRecords]
	}
	return nil
}

// ListLatest 返回最近的审计记录，按时间倒序排列。
func (f *FileRepository) ListLatest(_ context.Context, limit int) ([]Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > len(f.records) {
		limit = len(f.records)
	}
	results := make([]Record, limit)
	copy(results, f.records[:limit])
	return results, nil
}

// Close 文件仓库没有需要释放的资源。
func (f *FileRepository) Close() error { return nil }

func (f *FileRepository) loadFromDisk() error {
	file, err := os.OpenFile(f.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取审计日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var restored []Record
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if record.ID > f.nextID {
			f.nextID = record.ID
		}
		restored = append([]Record{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析审计日志失败: %w", err)
	}

	if len(restored) > maxCachedRecords {
		restored = restored[:maxCachedRecords]
	}
	f.records = restored
	return nil
}
