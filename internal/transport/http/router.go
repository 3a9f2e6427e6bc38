package http

import (
	"net/http"
	"time"

	"bleepy-challenge-service/internal/app"
	"bleepy-challenge-service/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// RouterConfig carries the dependencies of the HTTP surface.
type RouterConfig struct {
	Service   *app.ChallengeService
	Log       *logrus.Entry
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	JWTSecret string
}

// NewRouter builds the gin engine with the REST API, the websocket stream,
// health and metrics endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Log), requestMetrics(cfg.Metrics))

	handler := NewChallengeHandler(cfg.Service, cfg.Log)
	ws := NewWSHandler(cfg.Service, cfg.Log)
	auth := AuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api")
	{
		api.GET("/leaderboard", handler.Leaderboard)

		protected := api.Group("/")
		protected.Use(auth)
		{
			protected.POST("/leaderboard/reset", handler.ResetLeaderboard)
			protected.GET("/users/me/xp", handler.MyXP)

			challenges := protected.Group("/challenges")
			{
				challenges.POST("", handler.CreateChallenge)
				challenges.GET("/:code", handler.GetChallenge)
				challenges.POST("/:code/join", handler.JoinChallenge)
				challenges.POST("/:code/ready", handler.MarkReady)
				challenges.DELETE("/:code/participants/:participantId", handler.RemoveParticipant)
				challenges.POST("/:code/start", handler.StartChallenge)
				challenges.POST("/:code/end", handler.EndChallenge)
				challenges.POST("/:code/answers", handler.SubmitAnswer)
			}
		}
	}

	router.GET("/ws", auth, ws.ServeWS)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if who := identityFrom(c); who.UserID != "" {
			entry = entry.WithField("user_id", who.UserID)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request")
			return
		}
		entry.Debug("request")
	}
}

func requestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, c.Writer.Status(), time.Since(start))
	}
}
