// Package action is the boundary the transport calls. Every operation returns a result value: lower
// layer errors and panics are logged and folded into the result's Error and Kind.
package action

import (
	"context"
	"fmt"
	"log"
	"strings"

	"recipesnap/internal/apperr"
	"recipesnap/internal/recipe"
	"recipesnap/internal/schema"
)

// operation names a service call in logs and says how to report an unclassified failure.
type operation struct {
	name     string
	fallback string
	kind     apperr.Kind
}

var (
	analyzeOp = operation{"analyzeIngredients", "an unexpected error occurred while analyzing the image", apperr.KindGenerationFailed}
	suggestOp = operation{"suggestRecipes", "an unexpected error occurred while suggesting recipes", apperr.KindGenerationFailed}
	addOp     = operation{"addFavorite", "an unexpected error occurred while saving the favorite", apperr.KindPersistenceFailed}
	removeOp  = operation{"removeFavorite", "an unexpected error occurred while removing the favorite", apperr.KindPersistenceFailed}
	listOp    = operation{"listFavorites", "an unexpected error occurred while loading favorites", apperr.KindPersistenceFailed}
	getOp     = operation{"getFavorite", "an unexpected error occurred while loading the favorite", apperr.KindPersistenceFailed}
)

// Flows is the model-backed half of the service.
type Flows interface {
	AnalyzeIngredients(ctx context.Context, in schema.AnalyzeIngredientsInput) (*schema.AnalyzeIngredientsOutput, error)
	SuggestRecipes(ctx context.Context, in schema.SuggestRecipesInput) (*schema.SuggestRecipesOutput, error)
}

// Failure is embedded in every result. Error is empty on success.
type Failure struct {
	Error string      `json:"error,omitempty"`
	Kind  apperr.Kind `json:"kind,omitempty"`
}

// Failed reports whether the operation failed.
func (f Failure) Failed() bool {
	return f.Error != ""
}

type AnalyzeResult struct {
	Ingredients []string `json:"ingredients"`
	Failure
}

type SuggestResult struct {
	Recipes []recipe.RecipeSuggestion `json:"recipes"`
	Failure
}

type MutationResult struct {
	Success bool `json:"success"`
	Failure
}

type FavoritesResult struct {
	Recipes []recipe.RecipeSuggestion `json:"recipes"`
	Failure
}

type FavoriteResult struct {
	Recipe *recipe.RecipeSuggestion `json:"recipe,omitempty"`
	Failure
}

type Service struct {
	flows     Flows
	favorites recipe.FavoriteStore
}

func NewService(flows Flows, favorites recipe.FavoriteStore) *Service {
	return &Service{flows: flows, favorites: favorites}
}

// InvokeAnalyzeIngredients identifies the ingredients in a photo data URI.
func (s *Service) InvokeAnalyzeIngredients(ctx context.Context, photoDataURI string) (res AnalyzeResult) {
	defer analyzeOp.recoverPanic(&res.Failure)

	out, err := s.flows.AnalyzeIngredients(ctx, schema.AnalyzeIngredientsInput{PhotoDataURI: photoDataURI})
	if err != nil {
		res.Failure = analyzeOp.fail(err)
		return res
	}
	res.Ingredients = out.Ingredients
	if res.Ingredients == nil {
		res.Ingredients = []string{}
	}
	return res
}

// InvokeSuggestRecipes suggests recipes for the ingredients, most relevant first. Recipes with the same
// score keep the order the model returned them in.
func (s *Service) InvokeSuggestRecipes(ctx context.Context, ingredients, dietaryRestrictions []string) (res SuggestResult) {
	defer suggestOp.recoverPanic(&res.Failure)

	out, err := s.flows.SuggestRecipes(ctx, schema.SuggestRecipesInput{
		Ingredients:         ingredients,
		DietaryRestrictions: dietaryRestrictions,
	})
	if err != nil {
		res.Failure = suggestOp.fail(err)
		return res
	}
	res.Recipes = out.Recipes
	if res.Recipes == nil {
		res.Recipes = []recipe.RecipeSuggestion{}
	}
	recipe.SortByRelevance(res.Recipes)
	return res
}

// AddFavorite saves r under the user's favorites, replacing any favorite with the same name.
func (s *Service) AddFavorite(ctx context.Context, userID string, r recipe.RecipeSuggestion) (res MutationResult) {
	defer addOp.recoverPanic(&res.Failure)

	if err := requireUser(userID); err != nil {
		res.Failure = addOp.fail(err)
		return res
	}
	if strings.TrimSpace(r.Name) == "" {
		res.Failure = addOp.fail(apperr.InvalidInput("recipe name is required"))
		return res
	}
	if err := s.favorites.SaveFavorite(ctx, userID, &recipe.FavoriteRecipe{RecipeSuggestion: r}); err != nil {
		res.Failure = addOp.fail(apperr.PersistenceFailed(err))
		return res
	}
	res.Success = true
	return res
}

// RemoveFavorite deletes the named favorite. Removing a favorite that does not exist succeeds.
func (s *Service) RemoveFavorite(ctx context.Context, userID, recipeName string) (res MutationResult) {
	defer removeOp.recoverPanic(&res.Failure)

	if err := requireUser(userID); err != nil {
		res.Failure = removeOp.fail(err)
		return res
	}
	if err := s.favorites.DeleteFavorite(ctx, userID, recipeName); err != nil {
		res.Failure = removeOp.fail(apperr.PersistenceFailed(err))
		return res
	}
	res.Success = true
	return res
}

// ListFavorites returns the user's favorites in whatever order the store yields them.
func (s *Service) ListFavorites(ctx context.Context, userID string) (res FavoritesResult) {
	defer listOp.recoverPanic(&res.Failure)

	if err := requireUser(userID); err != nil {
		res.Failure = listOp.fail(err)
		return res
	}
	favs, err := s.favorites.ListFavorites(ctx, userID)
	if err != nil {
		res.Failure = listOp.fail(apperr.PersistenceFailed(err))
		return res
	}
	res.Recipes = make([]recipe.RecipeSuggestion, 0, len(favs))
	for _, f := range favs {
		res.Recipes = append(res.Recipes, f.RecipeSuggestion)
	}
	return res
}

// GetFavorite fetches one favorite by name.
func (s *Service) GetFavorite(ctx context.Context, userID, recipeName string) (res FavoriteResult) {
	defer getOp.recoverPanic(&res.Failure)

	if err := requireUser(userID); err != nil {
		res.Failure = getOp.fail(err)
		return res
	}
	fav, err := s.favorites.GetFavorite(ctx, userID, recipeName)
	if err != nil {
		res.Failure = getOp.fail(apperr.PersistenceFailed(err))
		return res
	}
	if fav == nil {
		res.Failure = getOp.fail(apperr.NotFound("favorite", recipe.FavoritePath(userID, recipeName)))
		return res
	}
	res.Recipe = &fav.RecipeSuggestion
	return res
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.AuthRequired("sign in to manage favorites")
	}
	return nil
}

func (op operation) fail(err error) Failure {
	log.Printf("%s failed: %v", op.name, err)
	msg := err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = op.fallback
	}
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnknown {
		kind = op.kind
	}
	return Failure{Error: msg, Kind: kind}
}

// recoverPanic must be deferred directly by the operation.
func (op operation) recoverPanic(f *Failure) {
	if r := recover(); r != nil {
		*f = op.fail(fmt.Errorf("panic: %v", r))
	}
}
