package keystore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (m *MemoryStore) Save(_ context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return errors.New("record id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.ID]; ok {
		return errors.Errorf("wallet %s already exists", record.ID)
	}
	m.records[record.ID] = cloneRecord(record)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "wallet %s", id)
	}
	return cloneRecord(record), nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, cloneRecord(record))
	}
	sortRecords(out)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return errors.Wrapf(ErrNotFound, "wallet %s", id)
	}
	delete(m.records, id)
	return nil
}

// FileStore keeps one JSON file per wallet in a directory.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("keystore directory is required")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.Wrap(err, "failed to create keystore directory")
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Save(_ context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is required")
	}
	path, err := f.path(record.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal record")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if os.IsExist(err) {
			return errors.Errorf("wallet %s already exists", record.ID)
		}
		return errors.Wrap(err, "failed to create wallet file")
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return errors.Wrap(err, "failed to write wallet file")
	}
	return errors.Wrap(file.Close(), "failed to close wallet file")
}

func (f *FileStore) Get(_ context.Context, id string) (*Record, error) {
	path, err := f.path(id)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return readRecord(path)
}

func (f *FileStore) List(_ context.Context) ([]*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(f.dir, "*.json"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list keystore directory")
	}

	out := make([]*Record, 0, len(paths))
	for _, path := range paths {
		record, err := readRecord(path)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	sortRecords(out)
	return out, nil
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	path, err := f.path(id)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "wallet %s", id)
		}
		return errors.Wrap(err, "failed to remove wallet file")
	}
	return nil
}

// path only accepts uuid ids so a record can never escape the directory.
func (f *FileStore) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.Wrapf(ErrNotFound, "wallet %q", id)
	}
	return filepath.Join(f.dir, id+".json"), nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "wallet file %s", filepath.Base(path))
		}
		return nil, errors.Wrap(err, "failed to read wallet file")
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrapf(err, "failed to parse wallet file %s", filepath.Base(path))
	}
	return &record, nil
}

func cloneRecord(r *Record) *Record {
	c := *r
	c.Blob = append([]byte(nil), r.Blob...)
	return &c
}

func sortRecords(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
