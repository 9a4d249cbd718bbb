package storage

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileStore keeps one file per key under <baseDir>/state.
type FileStore struct {
	baseDir     string
	logger      *logrus.Logger
	mu          sync.RWMutex
	compression bool
}

func NewFileStore(baseDir string, compression bool, logger *logrus.Logger) (*FileStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	if err := os.MkdirAll(filepath.Join(baseDir, "state"), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &FileStore{
		baseDir:     baseDir,
		logger:      logger,
		compression: compression,
	}, nil
}

func (fs *FileStore) path(key string) string {
	name := key + ".json"
	if fs.compression {
		name += ".gz"
	}
	return filepath.Join(fs.baseDir, "state", name)
}

func (fs *FileStore) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	for _, p := range []string{fs.path(key), fs.altPath(key)} {
		data, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read state file: %w", err)
		}
		if strings.HasSuffix(p, ".gz") {
			return gunzip(data)
		}
		return data, nil
	}
	return nil, ErrNotFound
}

// altPath is the file name used with the opposite compression setting, so
// toggling compression does not lose existing values.
func (fs *FileStore) altPath(key string) string {
	p := fs.path(key)
	if strings.HasSuffix(p, ".gz") {
		return strings.TrimSuffix(p, ".gz")
	}
	return p + ".gz"
}

func (fs *FileStore) Put(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := value
	if fs.compression {
		var err error
		if data, err = gzipBytes(value); err != nil {
			return fmt.Errorf("compress value: %w", err)
		}
	}

	finalPath := fs.path(key)
	dir := filepath.Dir(finalPath)
	tmpFile, err := os.CreateTemp(dir, "."+key+"_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpFile.Name(), 0o600); err != nil {
		fs.logger.Debugf("chmod %s: %v", tmpFile.Name(), err)
	}
	if err := os.Rename(tmpFile.Name(), finalPath); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("atomic rename: %w", err)
	}
	_ = os.Remove(fs.altPath(key))

	fs.logger.Debugf("State %s saved to %s", key, finalPath)
	return nil
}

func (fs *FileStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, p := range []string{fs.path(key), fs.altPath(key)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete state file: %w", err)
		}
	}
	return nil
}

func (fs *FileStore) Keys() ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(fs.baseDir, "state"))
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}
	seen := make(map[string]struct{}, len(entries))
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		name = strings.TrimSuffix(name, ".gz")
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (fs *FileStore) Close() error { return nil }

func (fs *FileStore) GetStorageStats() (map[string]interface{}, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	stats := make(map[string]interface{})

	totalSize, count, err := directorySize(filepath.Join(fs.baseDir, "state"))
	if err != nil {
		return nil, fmt.Errorf("calculate dir size: %w", err)
	}

	stats["driver"] = DriverFile
	stats["location"] = filepath.Join(fs.baseDir, "state")
	stats["total_size_bytes"] = totalSize
	stats["key_count"] = count
	stats["compression_enabled"] = fs.compression
	return stats, nil
}

func directorySize(path string) (int64, int, error) {
	var size int64
	count := 0
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
			count++
		}
		return nil
	})
	return size, count, err
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := gzw.Write(data); err != nil {
		gzw.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer gzr.Close()
	out, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}
