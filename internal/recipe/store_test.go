package recipe

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func soup(score float64) *FavoriteRecipe {
	return &FavoriteRecipe{RecipeSuggestion: RecipeSuggestion{
		Name:           "Soup",
		Ingredients:    []string{"tomato", "onion"},
		Instructions:   "Chop.\nSimmer for 20 minutes.",
		RelevanceScore: score,
		Source:         "Grandma",
	}}
}

// testFavoriteStore runs the behavior every FavoriteStore backend must share.
func testFavoriteStore(t *testing.T, store FavoriteStore) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		want := soup(0.7).RecipeSuggestion
		require.NoError(t, store.SaveFavorite(ctx, "roundtrip", &FavoriteRecipe{RecipeSuggestion: want}))

		favs, err := store.ListFavorites(ctx, "roundtrip")
		require.NoError(t, err)
		require.Len(t, favs, 1)
		assert.Equal(t, want, favs[0].RecipeSuggestion)
		assert.Equal(t, "roundtrip", favs[0].UserID)
		assert.False(t, favs[0].SavedAt.IsZero())

		got, err := store.GetFavorite(ctx, "roundtrip", "Soup")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want, got.RecipeSuggestion)
	})

	t.Run("empty ingredient list stays empty", func(t *testing.T) {
		want := RecipeSuggestion{Name: "Water", Ingredients: []string{}, Instructions: "Pour."}
		require.NoError(t, store.SaveFavorite(ctx, "empty", &FavoriteRecipe{RecipeSuggestion: want}))

		favs, err := store.ListFavorites(ctx, "empty")
		require.NoError(t, err)
		require.Len(t, favs, 1)
		assert.NotNil(t, favs[0].Ingredients)
		assert.Empty(t, favs[0].Ingredients)

		got, err := store.GetFavorite(ctx, "empty", "Water")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want, got.RecipeSuggestion)
	})

	t.Run("upsert overwrites same name", func(t *testing.T) {
		require.NoError(t, store.SaveFavorite(ctx, "upsert", soup(0.5)))
		require.NoError(t, store.SaveFavorite(ctx, "upsert", soup(0.9)))

		favs, err := store.ListFavorites(ctx, "upsert")
		require.NoError(t, err)
		require.Len(t, favs, 1)
		assert.Equal(t, 0.9, favs[0].RelevanceScore)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.DeleteFavorite(ctx, "nobody", "Nonexistent"))

		require.NoError(t, store.SaveFavorite(ctx, "deleter", soup(0.5)))
		require.NoError(t, store.DeleteFavorite(ctx, "deleter", "Soup"))
		require.NoError(t, store.DeleteFavorite(ctx, "deleter", "Soup"))

		got, err := store.GetFavorite(ctx, "deleter", "Soup")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("users are isolated", func(t *testing.T) {
		require.NoError(t, store.SaveFavorite(ctx, "alice", soup(0.5)))
		salad := &FavoriteRecipe{RecipeSuggestion: RecipeSuggestion{Name: "Salad", Ingredients: []string{}, Instructions: "Toss."}}
		require.NoError(t, store.SaveFavorite(ctx, "bob", salad))
		require.NoError(t, store.SaveFavorite(ctx, "bob", soup(0.1)))

		alice, err := store.ListFavorites(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, alice, 1)

		bob, err := store.ListFavorites(ctx, "bob")
		require.NoError(t, err)
		var names []string
		for _, f := range bob {
			names = append(names, f.Name)
		}
		sort.Strings(names)
		assert.Equal(t, []string{"Salad", "Soup"}, names)

		empty, err := store.ListFavorites(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestMemoryStore(t *testing.T) {
	testFavoriteStore(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fav := soup(0.5)
	require.NoError(t, store.SaveFavorite(ctx, "u", fav))
	fav.Ingredients[0] = "mutated"

	got, err := store.GetFavorite(ctx, "u", "Soup")
	require.NoError(t, err)
	assert.Equal(t, "tomato", got.Ingredients[0])
}

func TestDynamoDBStore(t *testing.T) {
	testFavoriteStore(t, NewDynamoDBStore("RecipeSnap", newFakeDynamo()))
}

func TestDynamoDBStore_ListFollowsPagination(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	fake.pageSize = 1
	store := NewDynamoDBStore("RecipeSnap", fake)

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, store.SaveFavorite(ctx, "u", &FavoriteRecipe{RecipeSuggestion: RecipeSuggestion{Name: name}}))
	}

	favs, err := store.ListFavorites(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, favs, 3)
	assert.Equal(t, 3, fake.queries)
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() || os.Getenv("RECIPESNAP_PG_TESTS") == "" {
		t.Skip("set RECIPESNAP_PG_TESTS=1 to run against a Postgres container")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "testuser",
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=testuser password=testpass dbname=testdb sslmode=disable", host, port.Port())
	store, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	testFavoriteStore(t, store)
}

// fakeDynamo keeps items in memory keyed by PK and SK. Query only understands the single PK equality
// condition the store issues.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]map[string]types.AttributeValue
	pageSize int
	queries  int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]map[string]types.AttributeValue)}
}

func keyStrings(key map[string]types.AttributeValue) (string, string) {
	var pk, sk string
	_ = attributevalue.Unmarshal(key["PK"], &pk)
	_ = attributevalue.Unmarshal(key["SK"], &sk)
	return pk, sk
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, sk := keyStrings(in.Item)
	if f.items[pk] == nil {
		f.items[pk] = make(map[string]map[string]types.AttributeValue)
	}
	f.items[pk][sk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, sk := keyStrings(in.Key)
	delete(f.items[pk], sk)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, sk := keyStrings(in.Key)
	return &dynamodb.GetItemOutput{Item: f.items[pk][sk]}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	var pk string
	for _, v := range in.ExpressionAttributeValues {
		if err := attributevalue.Unmarshal(v, &pk); err != nil {
			return nil, err
		}
	}

	sks := make([]string, 0, len(f.items[pk]))
	for sk := range f.items[pk] {
		sks = append(sks, sk)
	}
	sort.Strings(sks)

	start := 0
	if in.ExclusiveStartKey != nil {
		_, after := keyStrings(in.ExclusiveStartKey)
		start = sort.SearchStrings(sks, after) + 1
	}
	end := len(sks)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &dynamodb.QueryOutput{}
	for _, sk := range sks[start:end] {
		out.Items = append(out.Items, f.items[pk][sk])
	}
	if end < len(sks) {
		last := f.items[pk][sks[end-1]]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
	}
	return out, nil
}
