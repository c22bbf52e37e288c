package storage

import (
	"errors"
	"sync"

	"github.com/printworks/sticker-layout/internal/solver"
)

var (
	// ErrInvalidStickers indicates the provided demand list violates validation rules.
	ErrInvalidStickers = errors.New("stickers must have unique non-empty names and non-negative demands")
)

// Storage provides access to the sticker demand list the solve endpoint
// falls back to when a request carries no stickers of its own.
type Storage interface {
	GetStickers() ([]solver.Sticker, error)
	SetStickers(stickers []solver.Sticker) error
}

// MemoryStorage keeps the demand list in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu       sync.RWMutex
	stickers []solver.Sticker
}

// NewMemoryStorage initialises an empty store; demands arrive via
// configuration or the API.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{stickers: []solver.Sticker{}}
}

// GetStickers returns a defensive copy of the current demand list in its
// original order.
func (s *MemoryStorage) GetStickers() ([]solver.Sticker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]solver.Sticker, len(s.stickers))
	copy(out, s.stickers)
	return out, nil
}

// SetStickers validates and stores the provided demand list, replacing the
// previous one.
func (s *MemoryStorage) SetStickers(stickers []solver.Sticker) error {
	normalized, err := normalizeStickers(stickers)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.stickers = normalized
	s.mu.Unlock()

	return nil
}

func normalizeStickers(stickers []solver.Sticker) ([]solver.Sticker, error) {
	if len(stickers) == 0 {
		return nil, ErrInvalidStickers
	}

	seen := make(map[string]struct{}, len(stickers))
	out := make([]solver.Sticker, 0, len(stickers))
	for _, st := range stickers {
		if st.Name == "" || st.Demand < 0 {
			return nil, ErrInvalidStickers
		}
		if _, dup := seen[st.Name]; dup {
			return nil, ErrInvalidStickers
		}
		seen[st.Name] = struct{}{}
		out = append(out, st)
	}
	return out, nil
}
