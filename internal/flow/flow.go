// Package flow implements the two model-backed operations: identifying ingredients in a photo and
// suggesting recipes for a list of ingredients. Each validates its input, renders a prompt, makes one
// structured-output call and validates the response.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log"

	"recipesnap/internal/apperr"
	"recipesnap/internal/photo"
	"recipesnap/internal/schema"
)

// Flows runs the ingredient and recipe flows against a Generator.
type Flows struct {
	generator     Generator
	maxPhotoWidth uint
}

// Option configures Flows.
type Option func(*Flows)

// WithMaxPhotoWidth shrinks photos wider than width before they are sent to the model.
func WithMaxPhotoWidth(width uint) Option {
	return func(f *Flows) { f.maxPhotoWidth = width }
}

func New(generator Generator, opts ...Option) *Flows {
	f := &Flows{generator: generator}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AnalyzeIngredients identifies the ingredients in a photo. A malformed photo fails with InvalidInput
// before the model is called; a failed call or an unusable response fails with GenerationFailed.
func (f *Flows) AnalyzeIngredients(ctx context.Context, in schema.AnalyzeIngredientsInput) (*schema.AnalyzeIngredientsOutput, error) {
	p, err := in.Validate()
	if err != nil {
		return nil, err
	}

	if f.maxPhotoWidth > 0 {
		small, err := photo.Downscale(p, f.maxPhotoWidth)
		if err != nil {
			log.Printf("analyzeIngredients: sending original photo, downscale failed: %v", err)
		} else {
			p = small
		}
	}

	prompt, err := render(analyzeIngredientsPrompt, p)
	if err != nil {
		return nil, fmt.Errorf("render analyzeIngredients prompt: %w", err)
	}

	raw, err := f.generator.Generate(ctx, Request{
		Name:   "analyzeIngredients",
		Prompt: prompt,
		Media:  p,
		Schema: schema.AnalyzeIngredientsOutputSchema,
	})
	if err != nil {
		return nil, generationFailed(err)
	}

	out, err := schema.DecodeAnalyzeIngredientsOutput(raw)
	if err != nil {
		return nil, apperr.GenerationFailed(err)
	}
	return out, nil
}

// SuggestRecipes asks the model for recipes that use the given ingredients and respect the dietary
// restrictions. The recipes come back in the model's order.
func (f *Flows) SuggestRecipes(ctx context.Context, in schema.SuggestRecipesInput) (*schema.SuggestRecipesOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	prompt, err := render(suggestRecipesPrompt, struct {
		schema.SuggestRecipesInput
		Example string
	}{in, suggestRecipesExample})
	if err != nil {
		return nil, fmt.Errorf("render suggestRecipes prompt: %w", err)
	}

	raw, err := f.generator.Generate(ctx, Request{
		Name:   "suggestRecipes",
		Prompt: prompt,
		Schema: schema.SuggestRecipesOutputSchema,
	})
	if err != nil {
		return nil, generationFailed(err)
	}

	out, err := schema.DecodeSuggestRecipesOutput(raw)
	if err != nil {
		return nil, apperr.GenerationFailed(err)
	}
	return out, nil
}

// generationFailed classifies a generator error, keeping a classification the generator already made.
func generationFailed(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.GenerationFailed(err)
}
