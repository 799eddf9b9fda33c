package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// FavoriteStore persists favorite recipes under users/{userId}/favorites/{recipeName}.
//
// SaveFavorite is an upsert, DeleteFavorite succeeds when nothing is stored under the key, and
// ListFavorites makes no promise about order. GetFavorite returns nil, nil when the key is absent.
type FavoriteStore interface {
	SaveFavorite(ctx context.Context, userID string, fav *FavoriteRecipe) error
	DeleteFavorite(ctx context.Context, userID, name string) error
	ListFavorites(ctx context.Context, userID string) ([]*FavoriteRecipe, error)
	GetFavorite(ctx context.Context, userID, name string) (*FavoriteRecipe, error)
}

const favoritesSchema = `
CREATE TABLE IF NOT EXISTS favorites (
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	ingredients JSONB NOT NULL DEFAULT '[]',
	instructions TEXT NOT NULL DEFAULT '',
	relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	source TEXT NOT NULL DEFAULT '',
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, name)
);
`

// PostgresStore implements FavoriteStore for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

type favoriteRow struct {
	UserID         string    `db:"user_id"`
	Name           string    `db:"name"`
	Ingredients    []byte    `db:"ingredients"`
	Instructions   string    `db:"instructions"`
	RelevanceScore float64   `db:"relevance_score"`
	Source         string    `db:"source"`
	SavedAt        time.Time `db:"saved_at"`
}

// NewPostgresStore connects to the database and creates the favorites table if it does not exist.
func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(favoritesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create favorites table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveFavorite inserts the favorite or overwrites the one stored under the same name.
func (s *PostgresStore) SaveFavorite(ctx context.Context, userID string, fav *FavoriteRecipe) error {
	ingredientsJSON, err := json.Marshal(fav.Ingredients)
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients: %w", err)
	}

	savedAt := fav.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO favorites (user_id, name, ingredients, instructions, relevance_score, source, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, name) DO UPDATE SET ingredients = $3, instructions = $4, relevance_score = $5, source = $6, saved_at = $7`,
		userID,
		fav.Name,
		ingredientsJSON,
		fav.Instructions,
		fav.RelevanceScore,
		fav.Source,
		savedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save favorite: %w", err)
	}
	return nil
}

// DeleteFavorite removes the favorite. Deleting a missing row is not an error.
func (s *PostgresStore) DeleteFavorite(ctx context.Context, userID, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM favorites WHERE user_id = $1 AND name = $2", userID, name); err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	return nil
}

// ListFavorites returns every favorite of the user in whatever order the database yields them.
func (s *PostgresStore) ListFavorites(ctx context.Context, userID string) ([]*FavoriteRecipe, error) {
	var rows []favoriteRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT user_id, name, ingredients, instructions, relevance_score, source, saved_at FROM favorites WHERE user_id = $1",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	favorites := make([]*FavoriteRecipe, 0, len(rows))
	for _, row := range rows {
		fav, err := row.toFavorite()
		if err != nil {
			return nil, err
		}
		favorites = append(favorites, fav)
	}
	return favorites, nil
}

// GetFavorite retrieves a single favorite by name.
func (s *PostgresStore) GetFavorite(ctx context.Context, userID, name string) (*FavoriteRecipe, error) {
	var row favoriteRow
	err := s.db.GetContext(ctx, &row,
		"SELECT user_id, name, ingredients, instructions, relevance_score, source, saved_at FROM favorites WHERE user_id = $1 AND name = $2",
		userID, name,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get favorite: %w", err)
	}
	return row.toFavorite()
}

func (r favoriteRow) toFavorite() (*FavoriteRecipe, error) {
	fav := &FavoriteRecipe{
		RecipeSuggestion: RecipeSuggestion{
			Name:           r.Name,
			Instructions:   r.Instructions,
			RelevanceScore: r.RelevanceScore,
			Source:         r.Source,
		},
		UserID:  r.UserID,
		SavedAt: r.SavedAt,
	}
	if err := json.Unmarshal(r.Ingredients, &fav.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	return fav, nil
}
