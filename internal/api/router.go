package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mtricolici98/bot-wuzzler/internal/api/handlers"
	"github.com/mtricolici98/bot-wuzzler/internal/api/middleware"
	"github.com/mtricolici98/bot-wuzzler/internal/config"
	"github.com/mtricolici98/bot-wuzzler/internal/service"
	"github.com/mtricolici98/bot-wuzzler/internal/websocket"
	"github.com/mtricolici98/bot-wuzzler/pkg/ratelimit"
)

// Dependencies are the services the router exposes. Notifier and Limiter are
// optional.
type Dependencies struct {
	Lobby    *service.LobbyService
	ELO      *service.ELOService
	History  *service.HistoryService
	Hub      *websocket.Hub
	Notifier websocket.Notifier
	Limiter  ratelimit.Limiter
}

func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	lobbyHandler := handlers.NewLobbyHandler(deps.Lobby, deps.Notifier)
	playerHandler := handlers.NewPlayerHandler(deps.History)
	leaderboardHandler := handlers.NewLeaderboardHandler(deps.ELO)
	commandHandler := handlers.NewCommandHandler(deps.Lobby, deps.ELO, deps.History, deps.Notifier)

	router.GET("/health", handlers.HealthCheck)

	v1 := router.Group("/api/v1")
	if deps.Limiter != nil {
		v1.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: deps.Limiter,
			KeyFunc: middleware.IPKeyFunc,
		}))
	}
	{
		if deps.Hub != nil {
			v1.GET("/ws", handlers.NewWebSocketHandler(deps.Hub).HandleWebSocket)
		}

		queue := v1.Group("/queue")
		{
			queue.GET("", lobbyHandler.GetQueue)
			queue.POST("", lobbyHandler.JoinQueue)
			queue.DELETE("/:player", lobbyHandler.LeaveQueue)
		}

		match := v1.Group("/match")
		{
			match.GET("", lobbyHandler.GetMatch)
			match.POST("/score", lobbyHandler.SetScore)
			match.POST("/result", lobbyHandler.SubmitResult)
		}

		v1.GET("/players/:player", playerHandler.GetPlayer)
		v1.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
		v1.GET("/loserboard", leaderboardHandler.GetLoserboard)

		v1.POST("/commands", commandHandler.HandleCommand)
	}

	return router
}
