package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"fluxgallery/internal/config"
	"fluxgallery/internal/enhance"
	"fluxgallery/internal/events"
	"fluxgallery/internal/middleware"
	"fluxgallery/internal/repository"
)

// PromptEnhancer is the enhancement surface the handlers depend on; tests
// substitute a stub.
type PromptEnhancer interface {
	Enhance(ctx context.Context, req enhance.Request) (enhance.Result, error)
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	db        *pgxpool.Pool
	cache     *redis.Client
	images    *repository.ImageRepository
	enhancer  PromptEnhancer
	bus       *events.Bus
	publisher events.Publisher
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	db *pgxpool.Pool,
	cache *redis.Client,
	enhancer PromptEnhancer,
	bus *events.Bus,
	publisher events.Publisher,
) HandlerSet {
	return HandlerSet{
		log:       log,
		cfg:       cfg,
		db:        db,
		cache:     cache,
		images:    repository.NewImageRepository(db),
		enhancer:  enhancer,
		bus:       bus,
		publisher: publisher,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)
	router.POST("/translate-prompt", h.TranslatePrompt)

	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(h.cfg))
	{
		v1.GET("/gallery", h.ListGallery)
		v1.DELETE("/gallery/:id", h.DeleteImage)
		v1.POST("/generate", h.Generate)
		v1.GET("/events", h.Events)
	}
}
