package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"recipesnap/internal/apperr"
	"recipesnap/internal/photo"
	"recipesnap/internal/recipe"
)

// ErrOutputMismatch is returned when a model response does not fit the declared output schema.
var ErrOutputMismatch = errors.New("model response does not match the output schema")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// AnalyzeIngredientsInput is the request to identify ingredients in a photo.
type AnalyzeIngredientsInput struct {
	PhotoDataURI string `json:"photoDataUri"`
}

// Validate checks the photo data URI and returns the decoded photo.
func (in AnalyzeIngredientsInput) Validate() (*photo.Photo, error) {
	if strings.TrimSpace(in.PhotoDataURI) == "" {
		return nil, apperr.InvalidInput("photoDataUri is required")
	}
	p, err := photo.Parse(in.PhotoDataURI)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInvalidInput, Message: "invalid photoDataUri", Cause: err}
	}
	return p, nil
}

// AnalyzeIngredientsOutput is the list of ingredients found in the photo. It may be empty.
type AnalyzeIngredientsOutput struct {
	Ingredients []string `json:"ingredients"`
}

// SuggestRecipesInput is the request for recipe suggestions. Ingredients must be present but may be
// empty; callers are expected to send at least one.
type SuggestRecipesInput struct {
	Ingredients         []string `json:"ingredients"`
	DietaryRestrictions []string `json:"dietaryRestrictions,omitempty"`
}

func (in SuggestRecipesInput) Validate() error {
	if in.Ingredients == nil {
		return apperr.InvalidInput("ingredients is required")
	}
	return nil
}

// SuggestRecipesOutput is a batch of suggestions as returned by the model.
type SuggestRecipesOutput struct {
	Recipes []recipe.RecipeSuggestion `json:"recipes"`
}

type analyzeIngredientsWire struct {
	Ingredients recipe.IngredientList `json:"ingredients" validate:"required"`
}

type recipeSuggestionWire struct {
	Name           *string  `json:"name" validate:"required"`
	Ingredients    []string `json:"ingredients" validate:"required"`
	Instructions   *string  `json:"instructions" validate:"required"`
	RelevanceScore *float64 `json:"relevanceScore" validate:"required"`
	Source         *string  `json:"source"`
}

type suggestRecipesWire struct {
	Recipes []recipeSuggestionWire `json:"recipes" validate:"required,dive"`
}

// DecodeAnalyzeIngredientsOutput parses and validates a model response. Ingredient names are trimmed
// and lowercased, and blank entries dropped.
func DecodeAnalyzeIngredientsOutput(raw []byte) (*AnalyzeIngredientsOutput, error) {
	var wire analyzeIngredientsWire
	if err := decodeStrict(raw, &wire); err != nil {
		return nil, err
	}
	return &AnalyzeIngredientsOutput{Ingredients: []string(wire.Ingredients)}, nil
}

// DecodeSuggestRecipesOutput parses and validates a model response. The recipes keep the model's order.
func DecodeSuggestRecipesOutput(raw []byte) (*SuggestRecipesOutput, error) {
	var wire suggestRecipesWire
	if err := decodeStrict(raw, &wire); err != nil {
		return nil, err
	}
	out := &SuggestRecipesOutput{Recipes: make([]recipe.RecipeSuggestion, 0, len(wire.Recipes))}
	for _, w := range wire.Recipes {
		r := recipe.RecipeSuggestion{
			Name:           *w.Name,
			Ingredients:    w.Ingredients,
			Instructions:   *w.Instructions,
			RelevanceScore: *w.RelevanceScore,
		}
		if w.Source != nil {
			r.Source = *w.Source
		}
		out.Recipes = append(out.Recipes, r)
	}
	return out, nil
}

func decodeStrict(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputMismatch, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrOutputMismatch, describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		msgs = append(msgs, fmt.Sprintf("%s is %s", field, fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
