// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package recent

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tab_monitor/internal/dto"
	"tab_monitor/internal/state"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage.json")
	return NewStore(state.NewManager(path)), path
}

func entry(i int) dto.VisitedSiteEntry {
	return dto.VisitedSiteEntry{
		URL:   fmt.Sprintf("https://site%d.test", i),
		Title: fmt.Sprintf("Site %d", i),
		Safe:  true,
	}
}

func TestRecord_PrependsNewest(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Record(entry(1)))
	require.NoError(t, s.Record(entry(2)))

	sites, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, entry(2), sites[0])
	assert.Equal(t, entry(1), sites[1])
}

func TestRecord_EvictsOldestPastCapacity(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 0; i < Capacity; i++ {
		require.NoError(t, s.Record(entry(i)))
	}
	before, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, before, Capacity)
	oldest := before[Capacity-1]
	assert.Equal(t, entry(0), oldest)

	require.NoError(t, s.Record(entry(100)))

	after, err := s.ReadAll()
	require.NoError(t, err)
	assert.Len(t, after, Capacity)
	assert.Equal(t, entry(100), after[0])
	assert.NotContains(t, after, oldest)
	assert.Equal(t, before[:Capacity-1], after[1:])
}

func TestRecord_LengthProperty(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 0; i < 25; i++ {
		prev, err := s.ReadAll()
		require.NoError(t, err)

		require.NoError(t, s.Record(entry(i)))

		got, err := s.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, entry(i), got[0])
		assert.Equal(t, min(len(prev)+1, Capacity), len(got))
	}
}

func TestReadAll_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Record(entry(1)))
	require.NoError(t, s.Record(entry(2)))

	first, err := s.ReadAll()
	require.NoError(t, err)
	second, err := s.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReadAll_Empty(t *testing.T) {
	s, _ := newTestStore(t)
	sites, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestRecord_PersistsAcrossManagers(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.Record(entry(7)))

	mgr := state.NewManager(path)
	require.NoError(t, mgr.Load())
	sites, err := NewStore(mgr).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []dto.VisitedSiteEntry{entry(7)}, sites)
}

func TestRecord_ConcurrentCallsLoseNothing(t *testing.T) {
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < Capacity; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Record(entry(i)))
		}(i)
	}
	wg.Wait()

	sites, err := s.ReadAll()
	require.NoError(t, err)
	assert.Len(t, sites, Capacity)
}

type failingStorage struct{}

func (failingStorage) Get(string, any) (bool, error) { return false, nil }
func (failingStorage) Set(string, any) error         { return nil }
func (failingStorage) Save() error                   { return errors.New("disk full") }

func TestRecord_SaveFailure(t *testing.T) {
	s := NewStore(failingStorage{})
	err := s.Record(entry(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
