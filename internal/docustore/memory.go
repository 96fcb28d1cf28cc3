package docustore

import (
	"context"
	"sort"
	"sync"

	id "persona-gateway/pkg/domain"
	dErrors "persona-gateway/pkg/domain-errors"
	"persona-gateway/pkg/platform/sentinel"
)

// InMemory keeps documents in process. It mirrors the contract's permission
// model so service tests exercise the same rules the chain enforces.
// It intentionally favors clarity over performance.
type InMemory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

func NewInMemory() *InMemory {
	return &InMemory{collections: make(map[string]map[string]Document)}
}

func (s *InMemory) Read(_ context.Context, collection, documentID string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.collections[collection][documentID]; ok {
		return doc, nil
	}
	return Document{}, sentinel.ErrNotFound
}

func (s *InMemory) ListByOwner(_ context.Context, collection string, owner id.AccountID) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []Document
	for _, doc := range s.collections[collection] {
		if doc.Owner == owner {
			docs = append(docs, doc)
		}
	}
	sortByID(docs)
	return docs, nil
}

func (s *InMemory) ListCollection(_ context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]Document, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, doc)
	}
	sortByID(docs)
	return docs, nil
}

func (s *InMemory) Set(_ context.Context, sender id.AccountID, collection, documentID, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(collection)
	if existing, ok := coll[documentID]; ok && existing.Owner != sender {
		return dErrors.New(dErrors.CodeForbidden, "document is owned by another account")
	}
	coll[documentID] = Document{ID: documentID, Owner: sender, Data: data}
	return nil
}

func (s *InMemory) Update(_ context.Context, _ id.AccountID, collection, documentID, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(collection)
	existing, ok := coll[documentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	// Non-owner writes are permitted; ownership stays with the creator.
	existing.Data = data
	coll[documentID] = existing
	return nil
}

func (s *InMemory) Delete(_ context.Context, sender id.AccountID, collection, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(collection)
	existing, ok := coll[documentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.Owner != sender {
		return dErrors.New(dErrors.CodeForbidden, "only the owner can delete a document")
	}
	delete(coll, documentID)
	return nil
}

func (s *InMemory) collection(name string) map[string]Document {
	coll, ok := s.collections[name]
	if !ok {
		coll = make(map[string]Document)
		s.collections[name] = coll
	}
	return coll
}

func sortByID(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
