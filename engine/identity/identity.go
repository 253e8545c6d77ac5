// Package identity derives stable graph identifiers from host entity tokens.
//
// Host tokens are stable across sessions of the same document but are opaque
// and unbounded in length; the graph keys every node on a deterministic UUID
// derived from the token instead. The same token always maps to the same ID,
// within a run and across runs.
package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/formalab/cadgraph/engine/cad"
)

// ErrUnavailable reports that an entity could not supply a usable token.
var ErrUnavailable = errors.New("identity: entity token unavailable")

// namespace for SHA1 UUIDs. Changing it changes every derived ID, so it is
// fixed for the life of the schema.
var namespace = uuid.MustParse("8c9e4f2a-1b3d-4e5f-9a7c-2d6b8e0f4a1c")

// Service maps entity tokens to stable IDs, caching per run.
type Service struct {
	mu    sync.Mutex
	cache map[string]string
}

func NewService() *Service {
	return &Service{cache: make(map[string]string)}
}

// IDForToken returns the stable ID for a raw token.
func (s *Service) IDForToken(token string) (string, error) {
	if token == "" {
		return "", ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.cache[token]; ok {
		return id, nil
	}
	id := uuid.NewSHA1(namespace, []byte(token)).String()
	s.cache[token] = id
	return id, nil
}

// IDFor returns the stable ID for an entity, wrapping token failures in
// ErrUnavailable so callers can skip the entity and keep going.
func (s *Service) IDFor(e cad.Entity) (string, error) {
	token, err := e.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.IDForToken(token)
}
