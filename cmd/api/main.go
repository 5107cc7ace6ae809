package main

import (
	"context"
	"os"
	"strings"
	"time"

	"gymstack_go_backend/cmd/api/config"
	"gymstack_go_backend/internal/api"
	"gymstack_go_backend/internal/auth"
	"gymstack_go_backend/internal/database"
	"gymstack_go_backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}

	ctx := context.Background()
	cfg := config.NewConfig()

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}

	// The reranker is optional: without an API key the pipeline runs
	// rule-based only, process-wide.
	var reranker services.RerankerManager
	genaiAPIKey := os.Getenv("GOOGLE_AI_STUDIO_API_KEY")
	if genaiAPIKey != "" {
		genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(genaiAPIKey))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GenAI client")
		}
		defer genaiClient.Close()

		model := genaiClient.GenerativeModel("gemini-1.5-flash")
		model.ResponseMIMEType = "application/json"
		reranker = services.NewGeminiRerankerService(model, cfg.RerankTimeout, cfg.MaxReasonLength)
	} else {
		log.Warn().Msg("GOOGLE_AI_STUDIO_API_KEY not set, AI reranking disabled")
	}

	// Internal services
	catalog := services.NewExerciseCatalogDB(db)
	usageDB := services.NewUsageServiceDB(db)
	userService := services.NewUserService(db)
	filter := services.NewCandidateFilterService(cfg.MaxCandidatesToScore)
	scorer := services.NewRuleScorerService()
	resultCache := services.NewRedisResultCache(redisClient)
	meter := services.NewRedisUsageMeter(redisClient, usageDB)

	alternativesService := services.NewAlternativesService(
		catalog,
		filter,
		scorer,
		resultCache,
		meter,
		reranker,
		cfg.ResultCacheTTL,
		cfg.DefaultResultLimit,
		cfg.MaxResultLimit,
	)

	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173"
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(allowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	limiter := api.NewRateLimiter(redisClient, cfg.RateLimitPerUser, cfg.RateLimitWindow)

	api.SetupRoutes(r, alternativesService, meter, catalog, usageDB, userService, limiter)
	auth.SetupRoutes(r, userService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Info().Str("port", port).Msg("Server starting")
	if err := r.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
