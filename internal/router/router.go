package router

import (
	"github.com/gin-gonic/gin"

	"shipdecl/internal/handler"
	"shipdecl/internal/ledger"
	"shipdecl/internal/middleware"
)

// Options configures the engine's global middleware.
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	opts Options,
	healthH *handler.HealthHandler,
	classifyH *handler.ClassifyHandler,
	ledgerH *handler.LedgerHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health checks
	r.GET("/health", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		// multipart framing on top of the largest accepted workbook
		maxUpload = ledger.MaxExcelSize + 1<<20
	}

	v1 := r.Group("/api/v1")
	v1.POST("/classify", classifyH.Classify)

	ledgerRoutes := v1.Group("/ledger")
	ledgerRoutes.Use(middleware.BodyLimit(maxUpload))
	ledgerRoutes.POST("/parse", ledgerH.Parse)

	return r
}
