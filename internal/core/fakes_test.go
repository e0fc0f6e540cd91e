package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/JonMunkholm/evsync/internal/source"
)

// memStore is an in-memory Store and RunRecorder.
type memStore struct {
	mu       sync.Mutex
	records  map[string]Record
	inserts  int
	updates  int
	failIDs  map[string]error
	listErr  error
	runs     []RunSummary
	listCall int
}

func newMemStore(ids ...string) *memStore {
	s := &memStore{records: make(map[string]Record), failIDs: make(map[string]error)}
	for _, id := range ids {
		s.records[id] = Record{ID: id}
	}
	return s
}

func (s *memStore) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCall++
	if s.listErr != nil {
		return nil, s.listErr
	}
	ids := make(map[string]struct{}, len(s.records))
	for id := range s.records {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *memStore) Insert(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIDs[rec.ID]; err != nil {
		return err
	}
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("duplicate key value violates unique constraint %q", "vehicles_pkey")
	}
	s.inserts++
	s.records[rec.ID] = rec
	return nil
}

func (s *memStore) Update(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIDs[rec.ID]; err != nil {
		return err
	}
	s.updates++
	s.records[rec.ID] = rec
	return nil
}

func (s *memStore) RecordRun(ctx context.Context, run RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts + s.updates
}

func (s *memStore) record(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

// gridProvider serves fixed grids. Sources without a grid return an
// empty one; sources in errs fail.
type gridProvider struct {
	grids map[source.ID]source.Grid
	errs  map[source.ID]error
}

func (p *gridProvider) Fetch(ctx context.Context, src source.Source) (source.Grid, error) {
	if err := p.errs[src.ID]; err != nil {
		return nil, &source.FetchError{Source: src.ID, Err: err}
	}
	if g, ok := p.grids[src.ID]; ok {
		return g, nil
	}
	return source.Grid{}, nil
}

func primaryGrid(rows ...[]string) source.Grid {
	g := source.Grid{{"id", "brand", "model"}}
	return append(g, rows...)
}
