package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/peercall/internal/adapters/signal"
	"github.com/dkeye/peercall/internal/app/orch"
	"github.com/dkeye/peercall/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware gives every browser a stable token kept in the
// cookie session. It is only used to correlate logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client token")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// corsConfig allows every origin for "*", otherwise the comma separated list.
func corsConfig(origin string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	if origin == "" || origin == "*" {
		c.AllowAllOrigins = true
		return c
	}
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowOrigins = append(c.AllowOrigins, o)
		}
	}
	return c
}

type iceServerJSON struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential any      `json:"credential,omitempty"`
}

type iceResponse struct {
	ICEServers           []iceServerJSON `json:"iceServers"`
	ICECandidatePoolSize int             `json:"iceCandidatePoolSize"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UserCount int    `json:"userCount"`
	RoomCount int    `json:"roomCount"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) (*gin.Engine, error) {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ice, err := iceConfig(cfg)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSOrigin)))

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PeercallSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.File(cfg.StaticPath + "/index.html")
	})

	r.GET("/metrics", gin.WrapH(o.Metrics.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, ice)
	})
	api.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Users())
	})
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.RoomsInfo())
	})
	api.GET("/health", func(c *gin.Context) {
		users, rooms := o.Counts()
		c.JSON(http.StatusOK, healthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			UserCount: users,
			RoomCount: rooms,
		})
	})

	ctrl := signal.NewSignalWSController(o, signal.OptionsFromConfig(cfg))
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r, nil
}

func iceConfig(cfg *config.Config) (iceResponse, error) {
	servers, err := cfg.ICE.Servers()
	if err != nil {
		return iceResponse{}, err
	}
	out := iceResponse{
		ICEServers:           make([]iceServerJSON, 0, len(servers)),
		ICECandidatePoolSize: cfg.ICE.CandidatePoolSize,
	}
	for _, s := range servers {
		out.ICEServers = append(out.ICEServers, iceServerJSON{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out, nil
}
