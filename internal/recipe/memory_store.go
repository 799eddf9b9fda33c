package recipe

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a FavoriteStore kept in process memory. Favorites are lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	favorites map[string]map[string]FavoriteRecipe
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		favorites: make(map[string]map[string]FavoriteRecipe),
		now:       time.Now,
	}
}

func (s *MemoryStore) SaveFavorite(_ context.Context, userID string, fav *FavoriteRecipe) error {
	stored := cloneFavorite(*fav)
	stored.UserID = userID
	if stored.SavedAt.IsZero() {
		stored.SavedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.favorites[userID]
	if !ok {
		byName = make(map[string]FavoriteRecipe)
		s.favorites[userID] = byName
	}
	byName[fav.Name] = stored
	return nil
}

func (s *MemoryStore) DeleteFavorite(_ context.Context, userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.favorites[userID], name)
	return nil
}

func (s *MemoryStore) ListFavorites(_ context.Context, userID string) ([]*FavoriteRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*FavoriteRecipe, 0, len(s.favorites[userID]))
	for _, fav := range s.favorites[userID] {
		c := cloneFavorite(fav)
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) GetFavorite(_ context.Context, userID, name string) (*FavoriteRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fav, ok := s.favorites[userID][name]
	if !ok {
		return nil, nil
	}
	c := cloneFavorite(fav)
	return &c, nil
}

func cloneFavorite(f FavoriteRecipe) FavoriteRecipe {
	f.Ingredients = slices.Clone(f.Ingredients)
	return f
}
