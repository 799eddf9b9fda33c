package recipe

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// KnownDietaryRestrictions are the labels the UI offers. Nothing downstream enforces this set.
var KnownDietaryRestrictions = []string{"vegetarian", "vegan", "gluten-free", "dairy-free"}

// RecipeSuggestion is a recipe proposed by the model for a set of ingredients.
//
// Name doubles as the favorite key: two suggestions with the same name collide once favorited and the
// later one overwrites the earlier one.
type RecipeSuggestion struct {
	Name           string   `json:"name"`
	Ingredients    []string `json:"ingredients"`
	Instructions   string   `json:"instructions"`
	RelevanceScore float64  `json:"relevanceScore"`
	Source         string   `json:"source,omitempty"`
}

// FavoriteRecipe is a suggestion saved under a user's namespace.
type FavoriteRecipe struct {
	RecipeSuggestion
	UserID  string    `json:"userId"`
	SavedAt time.Time `json:"savedAt"`
}

// IsKnownDietaryRestriction reports whether name is one of KnownDietaryRestrictions, ignoring case.
func IsKnownDietaryRestriction(name string) bool {
	return slices.Contains(KnownDietaryRestrictions, strings.ToLower(strings.TrimSpace(name)))
}

// FavoritePath is the document path of a favorite: users/{userId}/favorites/{recipeName}.
func FavoritePath(userID, name string) string {
	return fmt.Sprintf("users/%s/favorites/%s", userID, name)
}

// SortByRelevance orders suggestions by descending relevance score in place. Equal scores keep their
// incoming order.
func SortByRelevance(recipes []RecipeSuggestion) {
	sort.SliceStable(recipes, func(i, j int) bool {
		return recipes[i].RelevanceScore > recipes[j].RelevanceScore
	})
}

// NormalizeIngredient trims and lowercases an ingredient name.
func NormalizeIngredient(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IngredientList is a list of ingredient names. Decoding normalizes every entry and drops blanks.
type IngredientList []string

// UnmarshalJSON implements the json.Unmarshaler interface for IngredientList.
func (l *IngredientList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(IngredientList, 0, len(raw))
	for _, name := range raw {
		if n := NormalizeIngredient(name); n != "" {
			out = append(out, n)
		}
	}
	*l = out
	return nil
}

// Contains reports whether name is already in the list, ignoring case and surrounding space.
func (l IngredientList) Contains(name string) bool {
	n := NormalizeIngredient(name)
	for _, existing := range l {
		if strings.EqualFold(strings.TrimSpace(existing), n) {
			return true
		}
	}
	return false
}
