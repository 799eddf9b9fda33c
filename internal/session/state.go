// Package session keeps the per-visitor working state of the ingredient dashboard: the last photo, the
// ingredient list derived from it, the selected dietary restrictions and the last suggestion batch.
package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"recipesnap/internal/apperr"
	"recipesnap/internal/recipe"
)

// State is one session snapshot. The zero value is an empty session.
type State struct {
	PhotoDataURI        string                    `json:"photoDataUri,omitempty"`
	Ingredients         recipe.IngredientList     `json:"ingredients"`
	DietaryRestrictions []string                  `json:"dietaryRestrictions"`
	Recipes             []recipe.RecipeSuggestion `json:"recipes"`
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// AddIngredient appends a manually entered ingredient. Names are trimmed and lowercased; a name
// already in the list is ignored.
func (s *State) AddIngredient(name string) error {
	n := recipe.NormalizeIngredient(name)
	if n == "" {
		return apperr.InvalidInput("ingredient name must not be empty")
	}
	if s.Ingredients.Contains(n) {
		return nil
	}
	s.Ingredients = append(s.Ingredients, n)
	return nil
}

// RemoveIngredient drops every entry matching name, ignoring case.
func (s *State) RemoveIngredient(name string) {
	n := recipe.NormalizeIngredient(name)
	kept := s.Ingredients[:0]
	for _, existing := range s.Ingredients {
		if !strings.EqualFold(strings.TrimSpace(existing), n) {
			kept = append(kept, existing)
		}
	}
	s.Ingredients = kept
}

// SetDietaryRestriction checks or unchecks a restriction label.
func (s *State) SetDietaryRestriction(name string, checked bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	idx := -1
	for i, existing := range s.DietaryRestrictions {
		if existing == name {
			idx = i
			break
		}
	}
	switch {
	case checked && idx == -1:
		s.DietaryRestrictions = append(s.DietaryRestrictions, name)
	case !checked && idx != -1:
		s.DietaryRestrictions = append(s.DietaryRestrictions[:idx], s.DietaryRestrictions[idx+1:]...)
	}
}

// ResetForPhoto starts over with a new photo. Ingredients and suggestions from the previous photo are
// discarded; dietary restrictions are kept.
func (s *State) ResetForPhoto(dataURI string) {
	s.PhotoDataURI = dataURI
	s.Ingredients = nil
	s.Recipes = nil
}

// Encode serializes the snapshot.
func (s *State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a snapshot. Data that does not parse yields an empty state along with the error, so
// callers can log it and carry on.
func Decode(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return &State{}, fmt.Errorf("decode session state: %w", err)
	}
	return &s, nil
}
