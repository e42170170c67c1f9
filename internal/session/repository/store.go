package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/session/domain"
)

// DefaultKey is the storage key of the auth snapshot.
const DefaultKey = "mallow-sale.auth"

// Store is the persisted mirror of the session under one fixed key.
// Get, Set and Clear never fail: backend and decode errors are logged and the store
// degrades to "session not persisted".
type Store struct {
	backend Backend
	key     string
}

// NewStore returns a Store over backend. An empty key uses DefaultKey.
func NewStore(backend Backend, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{backend: backend, key: key}
}

// Key returns the storage key.
func (s *Store) Key() string { return s.key }

// Get returns the last written snapshot, or an anonymous Session when none exists or it
// cannot be read.
func (s *Store) Get(ctx context.Context) domain.Session {
	data, err := s.backend.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("session store: load %s: %v", s.key, err)
		}
		return domain.Session{}
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		log.Printf("session store: decode %s: %v", s.key, err)
		return domain.Session{}
	}
	return sess
}

// Set writes sess.
func (s *Store) Set(ctx context.Context, sess domain.Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		log.Printf("session store: encode %s: %v", s.key, err)
		return
	}
	if err := s.backend.Save(ctx, s.key, data); err != nil {
		log.Printf("session store: save %s: %v", s.key, err)
	}
}

// Clear removes the snapshot.
func (s *Store) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.key); err != nil && !errors.Is(err, ErrNotFound) {
		log.Printf("session store: delete %s: %v", s.key, err)
	}
}
