package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/faceid/internal/api/handlers"
	"github.com/your-org/faceid/internal/api/ws"
	"github.com/your-org/faceid/internal/events"
	"github.com/your-org/faceid/internal/merge"
	"github.com/your-org/faceid/internal/reconcile"
	"github.com/your-org/faceid/internal/storage"
)

type RouterConfig struct {
	Store       *storage.FSStore
	Engines     *reconcile.Holder
	Coordinator *merge.Coordinator
	Publisher   events.Publisher
	Hub         *ws.Hub
	// Optional; nil disables the audit and archive surfaces.
	DB    *storage.PostgresStore
	MinIO *storage.MinIOStore
	// Dependencies checked by /readyz.
	Pingers map[string]handlers.Pinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	systemH := handlers.NewSystemHandler(cfg.Pingers)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	settingsH := handlers.NewSettingsHandler(cfg.Engines)
	v1.GET("/settings", settingsH.Get)
	v1.POST("/settings/performance", settingsH.SetPerformance)

	var archive handlers.SourceCleaner
	if cfg.MinIO != nil {
		archive = cfg.MinIO
	}

	groups := v1.Group("/groups/:group_id")

	faceH := handlers.NewFaceHandler(cfg.Engines)
	groups.POST("/faces", faceH.Ingest)
	groups.POST("/train", faceH.Train)
	groups.POST("/recognize", faceH.Recognize)

	mergeH := handlers.NewMergeHandler(cfg.Coordinator)
	groups.POST("/merge", mergeH.Merge)

	groupH := handlers.NewGroupHandler(cfg.Store, cfg.Publisher, archive)
	groups.GET("/persons", groupH.ListPersons)
	groups.GET("/persons/:person_id/last_image", groupH.LastImage)
	groups.POST("/prune", groupH.Prune)
	groups.DELETE("", groupH.Delete)

	eventH := handlers.NewEventHandler(cfg.DB)
	groups.GET("/events", eventH.List)

	return r
}
