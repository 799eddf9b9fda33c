package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"

	"recipesnap/internal/action"
	"recipesnap/internal/api"
	"recipesnap/internal/auth"
	"recipesnap/internal/flow"
	"recipesnap/internal/recipe"
	"recipesnap/internal/session"
)

// mockGenerator is a mock of the model client. It answers per flow name.
type mockGenerator struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	requests  []flow.Request
}

// Generate mocks the Generate method.
func (m *mockGenerator) Generate(_ context.Context, req flow.Request) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return json.RawMessage(m.responses[req.Name]), nil
}

// mockGoogleValidator is a mock of the Google ID token validator.
type mockGoogleValidator struct{}

// Validate accepts any token except "bad" and uses it as the subject.
func (mockGoogleValidator) Validate(_ context.Context, idToken, _ string) (*idtoken.Payload, error) {
	if idToken == "bad" {
		return nil, errors.New("idtoken: invalid token")
	}
	return &idtoken.Payload{Subject: idToken, Claims: map[string]interface{}{"name": "Test User"}}, nil
}

type testServer struct {
	router    *gin.Engine
	generator *mockGenerator
	auth      *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	// Set up Gin in test mode
	gin.SetMode(gin.TestMode)

	generator := &mockGenerator{responses: map[string]string{
		"analyzeIngredients": `{"ingredients": ["tomato", "basil"]}`,
		"suggestRecipes": `{"recipes": [
			{"name": "Bruschetta", "ingredients": ["tomato", "basil", "bread"], "instructions": "Toast.\nTop.", "relevanceScore": 0.4},
			{"name": "Caprese", "ingredients": ["tomato", "basil", "mozzarella"], "instructions": "Slice.\nLayer.", "relevanceScore": 0.8}
		]}`,
	}}
	authService := auth.NewService(mockGoogleValidator{}, "client-id", "test-secret", time.Hour)
	service := action.NewService(flow.New(generator), recipe.NewMemoryStore())
	handler := api.NewHandler(service, session.NewMemoryStore(100, time.Hour), authService, time.Second)

	return &testServer{
		router:    setupRouter(handler, authService, []string{"http://localhost:8081"}),
		generator: generator,
		auth:      authService,
	}
}

// do serves a JSON request and decodes the JSON response into out when out is non-nil.
func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	// Create a new HTTP request
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	// Create a new response recorder
	rr := httptest.NewRecorder()

	// Serve the HTTP request
	s.router.ServeHTTP(rr, req)

	if out != nil {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
	}
	return rr.Code
}

func (s *testServer) bearer(t *testing.T, userID string) map[string]string {
	t.Helper()
	token, err := s.auth.IssueToken(auth.Principal{UserID: userID})
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	var body map[string]string
	code := s.do(t, http.MethodGet, "/healthz", nil, nil, &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestAnalyzeIngredients_DataURI(t *testing.T) {
	s := newTestServer(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))

	var res action.AnalyzeResult
	code := s.do(t, http.MethodPost, "/ingredients/analyze", map[string]string{"photoDataUri": uri}, nil, &res)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"tomato", "basil"}, res.Ingredients)
	assert.Empty(t, res.Error)
}

func TestAnalyzeIngredients_Upload(t *testing.T) {
	s := newTestServer(t)

	// Create a new multipart writer
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "fridge.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t))
	require.NoError(t, err)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingredients/analyze", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ingredients": ["tomato", "basil"]}`, rr.Body.String())
	require.Len(t, s.generator.requests, 1)
	assert.Equal(t, "image/png", s.generator.requests[0].Media.MIMEType)
}

func TestAnalyzeIngredients_UploadRejectsOtherFiles(t *testing.T) {
	s := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("two eggs"))
	require.NoError(t, err)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingredients/analyze", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid file type")
	assert.Empty(t, s.generator.requests)
}

func TestAnalyzeIngredients_MalformedPhoto(t *testing.T) {
	s := newTestServer(t)

	var res action.AnalyzeResult
	code := s.do(t, http.MethodPost, "/ingredients/analyze", map[string]string{"photoDataUri": "data:text/plain;base64,aGk="}, nil, &res)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, "InvalidInput", string(res.Kind))
	assert.Empty(t, s.generator.requests)
}

func TestSuggestRecipes_SortedByRelevance(t *testing.T) {
	s := newTestServer(t)

	var res action.SuggestResult
	code := s.do(t, http.MethodPost, "/recipes/suggest", map[string]any{
		"ingredients":         []string{"tomato", "basil"},
		"dietaryRestrictions": []string{"vegetarian"},
	}, nil, &res)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, res.Recipes, 2)
	assert.Equal(t, "Caprese", res.Recipes[0].Name)
	assert.Equal(t, "Bruschetta", res.Recipes[1].Name)
	assert.Contains(t, s.generator.requests[0].Prompt, "Dietary restrictions: vegetarian")
}

func TestSuggestRecipes_GeneratorFailure(t *testing.T) {
	s := newTestServer(t)
	s.generator.err = errors.New("upstream unavailable")

	var res action.SuggestResult
	code := s.do(t, http.MethodPost, "/recipes/suggest", map[string]any{"ingredients": []string{"egg"}}, nil, &res)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, res.Error, "upstream unavailable")
	assert.Nil(t, res.Recipes)
}

func TestSuggestRecipes_MissingIngredients(t *testing.T) {
	s := newTestServer(t)

	var res action.SuggestResult
	code := s.do(t, http.MethodPost, "/recipes/suggest", map[string]any{}, nil, &res)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidInput", string(res.Kind))
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t)

	// Start a session
	var created struct {
		SessionID string         `json:"sessionId"`
		State     *session.State `json:"state"`
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/session", nil, nil, &created))
	require.NotEmpty(t, created.SessionID)
	headers := map[string]string{api.SessionHeader: created.SessionID}

	// Analyzing a photo stores the ingredients
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/ingredients/analyze", map[string]string{"photoDataUri": uri}, headers, nil))

	// Manual edits
	var snapshot struct {
		State session.State `json:"state"`
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/session/ingredients", map[string]string{"name": " Garlic "}, headers, &snapshot))
	assert.Equal(t, recipe.IngredientList{"tomato", "basil", "garlic"}, snapshot.State.Ingredients)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/session/ingredients/basil", nil, headers, &snapshot))
	assert.Equal(t, recipe.IngredientList{"tomato", "garlic"}, snapshot.State.Ingredients)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/session/dietary/vegan", map[string]bool{"checked": true}, headers, &snapshot))
	assert.Equal(t, []string{"vegan"}, snapshot.State.DietaryRestrictions)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/session/ingredients", map[string]string{"name": "  "}, headers, nil))

	// Suggesting without a body list uses the session
	var suggested action.SuggestResult
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/recipes/suggest", map[string]any{}, headers, &suggested))
	assert.Contains(t, s.generator.requests[len(s.generator.requests)-1].Prompt, "Ingredients: tomato, garlic")
	assert.Contains(t, s.generator.requests[len(s.generator.requests)-1].Prompt, "Dietary restrictions: vegan")

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/session", nil, headers, &snapshot))
	assert.Equal(t, uri, snapshot.State.PhotoDataURI)
	require.Len(t, snapshot.State.Recipes, 2)
	assert.Equal(t, "Caprese", snapshot.State.Recipes[0].Name)

	// Clearing forgets everything
	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/session", nil, headers, nil))
	var cleared struct {
		State session.State `json:"state"`
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/session", nil, headers, &cleared))
	assert.Empty(t, cleared.State.Ingredients)
	assert.Empty(t, cleared.State.Recipes)
}

func TestSession_RequiresHeader(t *testing.T) {
	s := newTestServer(t)

	var res action.Failure
	code := s.do(t, http.MethodGet, "/session", nil, nil, &res)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, res.Error, api.SessionHeader)
}

func TestFavorites_RequireSignIn(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/favorites"},
		{http.MethodPost, "/favorites"},
		{http.MethodGet, "/favorites/Soup"},
		{http.MethodDelete, "/favorites/Soup"},
		{http.MethodGet, "/auth/me"},
	} {
		var res action.Failure
		code := s.do(t, tc.method, tc.path, nil, nil, &res)
		assert.Equal(t, http.StatusUnauthorized, code, tc.path)
		assert.Equal(t, "AuthRequired", string(res.Kind), tc.path)
	}
}

func TestFavorites_CRUD(t *testing.T) {
	s := newTestServer(t)
	headers := s.bearer(t, "u1")
	soup := recipe.RecipeSuggestion{
		Name:           "Soup",
		Ingredients:    []string{"carrot"},
		Instructions:   "Simmer.",
		RelevanceScore: 0.5,
	}

	var mutation action.MutationResult
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/favorites", soup, headers, &mutation))
	assert.True(t, mutation.Success)

	soup.RelevanceScore = 0.9
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/favorites", soup, headers, &mutation))

	var list action.FavoritesResult
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/favorites", nil, headers, &list))
	assert.Equal(t, []recipe.RecipeSuggestion{soup}, list.Recipes)

	var one action.FavoriteResult
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/favorites/Soup", nil, headers, &one))
	assert.Equal(t, soup, *one.Recipe)

	// Other users see nothing
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/favorites", nil, s.bearer(t, "u2"), &list))
	assert.Empty(t, list.Recipes)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/favorites/Soup", nil, headers, &mutation))
	assert.True(t, mutation.Success)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/favorites/Soup", nil, headers, &mutation))
	assert.True(t, mutation.Success)

	var missing action.FavoriteResult
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/favorites/Soup", nil, headers, &missing))
	assert.Equal(t, "NotFound", string(missing.Kind))
}

func TestFavorites_NameWithSlash(t *testing.T) {
	s := newTestServer(t)
	headers := s.bearer(t, "u1")
	chicken := recipe.RecipeSuggestion{
		Name:           "Salt / Pepper Chicken",
		Ingredients:    []string{"chicken", "salt", "pepper"},
		Instructions:   "Season.\nRoast.",
		RelevanceScore: 0.7,
	}
	path := "/favorites/" + url.PathEscape(chicken.Name)

	var mutation action.MutationResult
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/favorites", chicken, headers, &mutation))

	var one action.FavoriteResult
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, nil, headers, &one))
	assert.Equal(t, chicken, *one.Recipe)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, path, nil, headers, &mutation))
	assert.True(t, mutation.Success)

	var list action.FavoritesResult
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/favorites", nil, headers, &list))
	assert.Empty(t, list.Recipes)
}

func TestSession_RemoveIngredientWithSlash(t *testing.T) {
	s := newTestServer(t)

	var created struct {
		SessionID string `json:"sessionId"`
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/session", nil, nil, &created))
	headers := map[string]string{api.SessionHeader: created.SessionID}

	var snapshot struct {
		State session.State `json:"state"`
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/session/ingredients", map[string]string{"name": "salt/pepper"}, headers, &snapshot))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/session/ingredients/"+url.PathEscape("salt/pepper"), nil, headers, &snapshot))
	assert.Empty(t, snapshot.State.Ingredients)
}

func TestFavorites_AddRejectsBadBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/favorites", strings.NewReader(`{"name": 12}`))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.bearer(t, "u1") {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var res action.MutationResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestAuth_GoogleSignIn(t *testing.T) {
	s := newTestServer(t)

	var signIn struct {
		Token string         `json:"token"`
		User  auth.Principal `json:"user"`
	}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/google", map[string]string{"idToken": "google-sub-1"}, nil, &signIn))
	assert.Equal(t, "google-sub-1", signIn.User.UserID)
	assert.Equal(t, "Test User", signIn.User.Name)

	var me auth.Principal
	headers := map[string]string{"Authorization": "Bearer " + signIn.Token}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/auth/me", nil, headers, &me))
	assert.Equal(t, signIn.User, me)

	var failure action.Failure
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/auth/google", map[string]string{"idToken": "bad"}, nil, &failure))
	assert.Equal(t, "AuthRequired", string(failure.Kind))
}
