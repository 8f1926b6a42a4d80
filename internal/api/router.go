package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/logger"
	compat "vibe-workers/internal/workers/ai-generation/compatibility"
	cf "vibe-workers/internal/workers/ai-generation/conversation-feedback"
	pv "vibe-workers/internal/workers/ai-generation/photo-verification"
	pc "vibe-workers/internal/workers/ai-generation/practice-conversation"
	st "vibe-workers/internal/workers/ai-generation/summarize-text"
	vg "vibe-workers/internal/workers/ai-generation/vibe-generation"
)

// Handlers are the use-case handlers exposed over HTTP. A nil handler leaves
// its route unregistered.
type Handlers struct {
	Summarize            *st.Handler
	Vibe                 *vg.Handler
	Compatibility        *compat.Handler
	Practice             *pc.Handler
	PhotoVerification    *pv.Handler
	ConversationFeedback *cf.Handler
}

type RouterConfig struct {
	Handlers       Handlers
	Service        *generation.Service
	Logger         logger.Logger
	RequestTimeout time.Duration
	// Broker is reported by /healthz when set.
	Broker BrokerChecker

	// AllowOrigins enables CORS when non-empty.
	AllowOrigins []string
	// ServiceName and TracerProvider enable request spans when TracerProvider is set.
	ServiceName    string
	TracerProvider trace.TracerProvider
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if len(cfg.AllowOrigins) > 0 {
		router.Use(CORS(cfg.AllowOrigins))
	}
	if cfg.TracerProvider != nil {
		router.Use(Tracing(cfg.ServiceName, cfg.TracerProvider))
	}
	router.Use(RequestID())
	router.Use(RequestLogger(cfg.Logger))
	router.Use(Metrics())

	router.GET("/healthz", NewHealthHandler(cfg.Service, cfg.Broker).HealthCheck)

	ai := router.Group("/api/ai")
	ai.Use(Timeout(cfg.RequestTimeout))
	{
		ai.GET("/templates", ListTemplates)

		h := cfg.Handlers
		if h.Summarize != nil {
			ai.POST("/summarize", serve(h.Summarize.Execute))
		}
		if h.Vibe != nil {
			ai.POST("/vibe", serve(h.Vibe.Execute))
		}
		if h.Compatibility != nil {
			ai.POST("/compatibility", serve(h.Compatibility.Execute))
		}
		if h.Practice != nil {
			ai.POST("/practice", serve(h.Practice.Execute))
		}
		if h.PhotoVerification != nil {
			ai.POST("/verify-photo", serve(h.PhotoVerification.Execute))
		}
		if h.ConversationFeedback != nil {
			ai.POST("/feedback", serve(h.ConversationFeedback.Execute))
		}
	}

	return router
}
