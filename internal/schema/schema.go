// Package schema declares the shape of everything that crosses the model boundary: the inputs the
// flows accept, the outputs they promise, and a provider-neutral description of those outputs that a
// generator can use for structured output.
package schema

// Type is a JSON value type.
type Type string

const (
	TypeObject Type = "object"
	TypeArray  Type = "array"
	TypeString Type = "string"
	TypeNumber Type = "number"
)

// Schema describes a JSON value.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
}

func stringList(description string) *Schema {
	return &Schema{Type: TypeArray, Description: description, Items: &Schema{Type: TypeString}}
}

// RecipeSuggestionSchema describes one suggested recipe.
var RecipeSuggestionSchema = &Schema{
	Type: TypeObject,
	Properties: map[string]*Schema{
		"name":           {Type: TypeString, Description: "The name of the recipe."},
		"ingredients":    stringList("The ingredients the recipe needs."),
		"instructions":   {Type: TypeString, Description: "Step by step cooking instructions."},
		"relevanceScore": {Type: TypeNumber, Description: "How relevant the recipe is to the given ingredients. Higher is more relevant."},
		"source":         {Type: TypeString, Description: "Where the recipe comes from, for example a website or cookbook."},
	},
	Required: []string{"name", "ingredients", "instructions", "relevanceScore"},
}

// AnalyzeIngredientsOutputSchema describes the ingredient list identified in a photo.
var AnalyzeIngredientsOutputSchema = &Schema{
	Type: TypeObject,
	Properties: map[string]*Schema{
		"ingredients": stringList("The ingredients identified in the photo."),
	},
	Required: []string{"ingredients"},
}

// SuggestRecipesOutputSchema describes a batch of recipe suggestions.
var SuggestRecipesOutputSchema = &Schema{
	Type: TypeObject,
	Properties: map[string]*Schema{
		"recipes": {Type: TypeArray, Description: "The suggested recipes.", Items: RecipeSuggestionSchema},
	},
	Required: []string{"recipes"},
}
