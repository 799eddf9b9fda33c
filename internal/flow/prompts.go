package flow

import (
	"encoding/json"
	"strings"
	"text/template"
)

var analyzeIngredientsPrompt = template.Must(template.New("analyzeIngredients").Parse(
	`You are an expert chef. Analyze the attached photo and identify the food ingredients in it.

Photo: the attached {{.MIMEType}} image.

List every ingredient you can identify. Use short lowercase names, one ingredient per entry.
Return a JSON object of the form {"ingredients": ["ingredient1", "ingredient2"]}.`))

var suggestRecipesPrompt = template.Must(template.New("suggestRecipes").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(
	`You are a recipe suggestion expert. Given a list of ingredients, suggest recipes that can be made with them.

Ingredients: {{join .Ingredients ", "}}
{{if .DietaryRestrictions}}
Dietary restrictions: {{join .DietaryRestrictions ", "}}
Every recipe must respect all of the dietary restrictions above.
{{end}}
Suggest the recipes that are most relevant to the given ingredients. Give each recipe a relevanceScore
between 0 and 1, where higher means a better match. Return the recipes in the following JSON format:

{{.Example}}
`))

// suggestRecipesExample anchors the model on the exact output shape.
var suggestRecipesExample = func() string {
	example := map[string]any{
		"recipes": []map[string]any{{
			"name":           "Recipe name",
			"ingredients":    []string{"ingredient1", "ingredient2"},
			"instructions":   "Step by step instructions.",
			"relevanceScore": 0.9,
			"source":         "Optional source",
		}},
	}
	b, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}()

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
