package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"cyberwill/backend/internal/config"
	"cyberwill/backend/internal/extract"
	"cyberwill/backend/internal/prompt"
	"cyberwill/backend/internal/provider"
	"cyberwill/backend/internal/store"
)

const serviceName = "cyberwill-api"

// AnalysisCache is satisfied by *cache.AnalysisCache.
type AnalysisCache interface {
	Get(ctx context.Context, key string) (extract.Result, bool, error)
	Set(ctx context.Context, key string, result extract.Result) error
}

// AnalysisRecorder is satisfied by *store.AnalysisStore.
type AnalysisRecorder interface {
	Insert(ctx context.Context, rec store.AnalysisRecord) (string, error)
}

// Deps are the collaborators built at startup. Cache and Store are optional.
type Deps struct {
	Provider provider.Provider
	Cache    AnalysisCache
	Store    AnalysisRecorder
	Logger   zerolog.Logger
}

type App struct {
	cfg       config.Config
	provider  provider.Provider
	assembler prompt.Assembler
	cache     AnalysisCache
	store     AnalysisRecorder
	logger    zerolog.Logger
}

func New(cfg config.Config, deps Deps) (*App, error) {
	if deps.Provider == nil {
		return nil, errors.New("server: provider is required")
	}
	assembler, err := prompt.NewAssembler(cfg.PromptStrategy)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:       cfg,
		provider:  deps.Provider,
		assembler: assembler,
		cache:     deps.Cache,
		store:     deps.Store,
		logger:    deps.Logger,
	}, nil
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(a.requestLogger(), gin.Recovery())
	router.Use(cors.New(corsConfig(a.cfg.CORSAllowOrigins)))

	router.GET("/", a.root)
	router.GET("/health", a.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/chat", a.chat)
	router.POST("/analyze-profile", a.analyzeProfile)

	return router
}

// corsConfig allows any origin when origins contains "*". Credentials are
// only allowed for an explicit origin list.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (a *App) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "CyberWill Backend is running"})
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  serviceName,
		"provider": a.provider.Name(),
	})
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
