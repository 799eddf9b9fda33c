package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"google.golang.org/api/idtoken"

	"recipesnap/internal/action"
	"recipesnap/internal/api"
	"recipesnap/internal/auth"
	"recipesnap/internal/config"
	"recipesnap/internal/flow"
	"recipesnap/internal/platform/gemini"
	"recipesnap/internal/platform/localllm"
	"recipesnap/internal/recipe"
	"recipesnap/internal/session"
)

const memorySessionCapacity = 10000

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}

	generator, closeGenerator, err := newGenerator(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("error creating %s generator: %w", cfg.Provider, err))
	}
	defer closeGenerator.Close()

	favorites, closeStore, err := newFavoriteStore(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("error creating %s store: %w", cfg.StoreBackend, err))
	}
	defer closeStore.Close()

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("error creating %s session store: %w", cfg.SessionBackend, err))
	}
	defer closeSessions.Close()

	googleValidator, err := idtoken.NewValidator(ctx)
	if err != nil {
		panic(fmt.Errorf("error creating Google ID token validator: %w", err))
	}
	authService := auth.NewService(googleValidator, cfg.GoogleClientID, cfg.JWTSecret, cfg.TokenTTL)

	flows := flow.New(generator, flow.WithMaxPhotoWidth(cfg.MaxPhotoWidth))
	handler := api.NewHandler(action.NewService(flows, favorites), sessions, authService, cfg.AITimeout)

	r := setupRouter(handler, authService, cfg.AllowedOrigins)
	log.Printf("recipesnap listening on %s (env=%s provider=%s store=%s sessions=%s)",
		cfg.Port, cfg.Env, cfg.Provider, cfg.StoreBackend, cfg.SessionBackend)
	if err := r.Run(cfg.Port); err != nil {
		log.Printf("server stopped: %v", err)
	}
}

func setupRouter(handler *api.Handler, tokens auth.TokenValidator, allowedOrigins []string) *gin.Engine {
	r := gin.Default()
	// Recipe names may contain "/", so route on the escaped path and unescape params afterwards.
	r.UseRawPath = true
	r.UnescapePathValues = true

	// Configure CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", api.SessionHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", handler.Health)
	r.POST("/ingredients/analyze", handler.AnalyzeIngredients)
	r.POST("/recipes/suggest", handler.SuggestRecipes)

	r.POST("/session", handler.CreateSession)
	r.GET("/session", handler.GetSession)
	r.PUT("/session", handler.ReplaceSession)
	r.DELETE("/session", handler.ClearSession)
	r.POST("/session/ingredients", handler.AddSessionIngredient)
	r.DELETE("/session/ingredients/:name", handler.RemoveSessionIngredient)
	r.PUT("/session/dietary/:name", handler.SetSessionDietary)

	r.POST("/auth/google", handler.SignInWithGoogle)

	protected := r.Group("/", auth.AuthMiddleware(tokens))
	protected.GET("/auth/me", handler.Me)
	protected.GET("/favorites", handler.ListFavorites)
	protected.POST("/favorites", handler.AddFavorite)
	protected.GET("/favorites/:name", handler.GetFavorite)
	protected.DELETE("/favorites/:name", handler.RemoveFavorite)
	return r
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var noopCloser = closerFunc(func() error { return nil })

func newGenerator(ctx context.Context, cfg *config.Config) (flow.Generator, io.Closer, error) {
	switch cfg.Provider {
	case config.ProviderLocal:
		return localllm.NewClient(cfg.LocalLLMURL, cfg.LocalLLMModel), noopCloser, nil
	default:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}
}

func newFavoriteStore(ctx context.Context, cfg *config.Config) (recipe.FavoriteStore, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		store, err := recipe.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case config.BackendDynamoDB:
		client, err := newDynamoDBClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return recipe.NewDynamoDBStore(cfg.DynamoDBTable, client), noopCloser, nil
	default:
		return recipe.NewMemoryStore(), noopCloser, nil
	}
}

// newDynamoDBClient uses the default AWS credential chain, or static dummy credentials against a local
// endpoint such as DynamoDB Local.
func newDynamoDBClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.DynamoEndpoint != "" {
		opts = append(opts,
			awsconfig.WithEndpointResolver(aws.EndpointResolverFunc(
				func(service, region string) (aws.Endpoint, error) {
					return aws.Endpoint{URL: cfg.DynamoEndpoint}, nil
				})),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
		)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, io.Closer, error) {
	if cfg.SessionBackend == config.BackendRedis {
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(client, cfg.SessionTTL), client, nil
	}
	return session.NewMemoryStore(memorySessionCapacity, cfg.SessionTTL), noopCloser, nil
}
