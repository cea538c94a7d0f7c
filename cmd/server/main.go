package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/music-room-system/internal/auth"
	"github.com/music-room-system/internal/playback"
	"github.com/music-room-system/internal/room"
	"github.com/music-room-system/internal/spotify"
	"github.com/music-room-system/internal/token"
	"github.com/music-room-system/internal/vote"
	"github.com/music-room-system/internal/ws"
	"github.com/music-room-system/pkg/database"
	"github.com/music-room-system/pkg/events"
	"github.com/music-room-system/pkg/redis"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	// Set Gin mode based on environment
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize MySQL database
	db, err := database.NewMySQLDB(
		os.Getenv("MYSQL_HOST"),
		os.Getenv("MYSQL_PORT"),
		os.Getenv("MYSQL_USER"),
		os.Getenv("MYSQL_PASSWORD"),
		os.Getenv("MYSQL_DATABASE"),
	)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     os.Getenv("REDIS_HOST") + ":" + os.Getenv("REDIS_PORT"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	// Initialize Kafka client
	kafkaClient := events.NewKafkaClient(
		strings.Split(os.Getenv("KAFKA_BROKERS"), ","),
		"room-events",
		os.Getenv("KAFKA_GROUP_ID"),
	)
	defer kafkaClient.Close()

	// Initialize services
	spotifyClient := spotify.NewClient(
		os.Getenv("SPOTIFY_CLIENT_ID"),
		os.Getenv("SPOTIFY_CLIENT_SECRET"),
		os.Getenv("SPOTIFY_REDIRECT_URI"),
	)

	tokenStore := redis.NewTokenStore(redisClient)
	sessionStore := redis.NewSessionStore(redisClient)

	tokenManager := token.NewManager(tokenStore, spotifyClient)
	proxy := playback.NewProxy(tokenManager, spotifyClient)
	roomService := room.NewService(db, sessionStore, kafkaClient)
	voteCoordinator := vote.NewCoordinator(db, proxy, kafkaClient)

	// Initialize handlers
	authHandler := auth.NewHandler(tokenManager)
	roomHandler := room.NewHandler(roomService)
	playbackHandler := playback.NewHandler(proxy, roomService, voteCoordinator)
	wsHandler := ws.NewHandler(kafkaClient, roomService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wsHandler.Run(ctx)

	// Initialize Gin router
	router := gin.Default()

	// CORS middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "https://your-frontend-domain.com"}, // Add your frontend URL
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// API routes
	// Redirect legacy Spotify OAuth callback to the API route
	router.GET("/auth/callback", func(c *gin.Context) {
		// Preserve query parameters when redirecting
		dest := "/api/v1/auth/callback"
		if raw := c.Request.URL.RawQuery; raw != "" {
			dest += "?" + raw
		}
		c.Redirect(http.StatusTemporaryRedirect, dest)
	})

	// Every API route runs with a session identity
	v1 := router.Group("/api/v1")
	v1.Use(auth.SessionMiddleware())

	authHandler.RegisterRoutes(v1)
	roomHandler.RegisterRoutes(v1)
	playbackHandler.RegisterRoutes(v1)

	// WebSocket endpoint
	v1.GET("/ws/:code", wsHandler.HandleWebSocket)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
