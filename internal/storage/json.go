package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/hyperjump/lotdocs/internal/models"
)

// Cache file names under the working directory.
const (
	QueriesFile = "queries_to_lots.json"
	NamesFile   = "lots_to_names.json"
)

// JSONStore keeps the caches as pretty-printed JSON files in a directory. Each update is a
// read-modify-write of the whole file, replaced atomically. The store is the only in-process
// writer; other processes must not share the directory.
type JSONStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONStore returns a store writing into dir. The directory is created on first write.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir}
}

// QueryLots returns the cached lot URLs of a query.
func (s *JSONStore) QueryLots(queryURL string) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var m map[string][]string
	if err := s.read(QueriesFile, &m); err != nil {
		return nil, false, err
	}
	lots, ok := m[queryURL]
	return lots, ok, nil
}

// SetQueryLots stores the lot URLs of a query, replacing any previous entry.
func (s *JSONStore) SetQueryLots(queryURL string, lotURLs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := map[string][]string{}
	if err := s.read(QueriesFile, &m); err != nil {
		return err
	}
	if m == nil {
		m = map[string][]string{}
	}
	if lotURLs == nil {
		lotURLs = []string{}
	}
	m[queryURL] = lotURLs
	return s.write(QueriesFile, m)
}

// LotName returns the cached display name of a lot.
func (s *JSONStore) LotName(lotURL string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var m map[string]string
	if err := s.read(NamesFile, &m); err != nil {
		return "", false, err
	}
	name, ok := m[lotURL]
	return name, ok, nil
}

// SetLotName stores a lot's display name. An existing name is never overwritten.
func (s *JSONStore) SetLotName(lotURL, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := map[string]string{}
	if err := s.read(NamesFile, &m); err != nil {
		return err
	}
	if m == nil {
		m = map[string]string{}
	}
	if _, ok := m[lotURL]; ok {
		return nil
	}
	m[lotURL] = name
	return s.write(NamesFile, m)
}

// LotNames returns every cached display name keyed by lot ID.
func (s *JSONStore) LotNames() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var m map[string]string
	if err := s.read(NamesFile, &m); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(m))
	for lotURL, name := range m {
		names[models.LotID(lotURL)] = name
	}
	return names, nil
}

// read decodes a cache file into v. A missing file leaves v untouched.
func (s *JSONStore) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *JSONStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	if err := renameio.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
