// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

// Package recent keeps the bounded list of recently visited sites shown by
// the popup view.
package recent

import (
	"fmt"
	"sync"

	"tab_monitor/internal/dto"
)

const (
	// StorageKey is the namespaced key holding the list
	StorageKey = "visitedSites"

	// Capacity is the maximum number of entries kept
	Capacity = 10
)

// Storage is the whole-value key/value area the list lives in
type Storage interface {
	Get(key string, v any) (bool, error)
	Set(key string, v any) error
	Save() error
}

// Store is the recent-sites log, newest first
type Store struct {
	storage Storage
	mu      sync.Mutex
}

// NewStore creates a store on top of storage
func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// Record prepends entry, evicts anything past Capacity and persists the list
func (s *Store) Record(entry dto.VisitedSiteEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sites, err := s.read()
	if err != nil {
		return err
	}

	updated := make([]dto.VisitedSiteEntry, 0, Capacity)
	updated = append(updated, entry)
	updated = append(updated, sites...)
	if len(updated) > Capacity {
		updated = updated[:Capacity]
	}

	if err := s.storage.Set(StorageKey, updated); err != nil {
		return fmt.Errorf("failed to store recent sites: %w", err)
	}
	if err := s.storage.Save(); err != nil {
		return fmt.Errorf("failed to persist recent sites: %w", err)
	}
	return nil
}

// ReadAll returns the stored entries, newest first
func (s *Store) ReadAll() ([]dto.VisitedSiteEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() ([]dto.VisitedSiteEntry, error) {
	var sites []dto.VisitedSiteEntry
	if _, err := s.storage.Get(StorageKey, &sites); err != nil {
		return nil, fmt.Errorf("failed to read recent sites: %w", err)
	}
	return sites, nil
}
