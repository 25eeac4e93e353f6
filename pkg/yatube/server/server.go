// Package server assembles the HTTP router of the API.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/autotls"
	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/auth"
	"github.com/mikepea/yatube/pkg/yatube/comments"
	"github.com/mikepea/yatube/pkg/yatube/config"
	"github.com/mikepea/yatube/pkg/yatube/follows"
	"github.com/mikepea/yatube/pkg/yatube/groups"
	"github.com/mikepea/yatube/pkg/yatube/logging"
	"github.com/mikepea/yatube/pkg/yatube/permissions"
	"github.com/mikepea/yatube/pkg/yatube/posts"
	"github.com/mikepea/yatube/pkg/yatube/storage"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APIPrefix is where the REST resources are mounted
const APIPrefix = "/api/v1"

const defaultMediaPrefix = "/media"

// Deps are the collaborators the router is built from
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Store  storage.Storage
	Logger *zap.Logger
}

// New builds the router with every API route registered
func New(deps Deps) *gin.Engine {
	cfg := deps.Config
	mediaPrefix := mediaRoute(cfg.Media.URL)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	_ = r.SetTrustedProxies(nil)

	r.Use(logging.Middleware(deps.Logger), gin.Recovery())
	r.Use(corsMiddleware(cfg.Server.CORSOrigins))
	if cfg.Server.Gzip {
		// Stored images are already compressed
		r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{mediaPrefix + "/"})))
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Uploaded images
	media := storage.Handler(deps.Store)
	r.GET(mediaPrefix+"/*filepath", media)
	r.HEAD(mediaPrefix+"/*filepath", media)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	api := r.Group(APIPrefix)
	api.Use(auth.Authenticate(tokens, deps.DB))
	{
		// Registration and tokens
		authHandler := auth.NewHandler(deps.DB, tokens)
		authHandler.RegisterRoutes(api, auth.RateLimit(cfg.Auth.LoginRate, cfg.Auth.LoginBurst))

		// Read-only groups
		groups.NewHandler(deps.DB).RegisterRoutes(api)

		// Posts and their comments: anyone reads, authors write
		owned := api.Group("", permissions.OwnerOrReadOnly())
		posts.NewHandler(deps.DB, deps.Store, cfg.Media.UploadDir).RegisterRoutes(owned)
		comments.NewHandler(deps.DB).RegisterRoutes(owned)

		// Subscriptions of the current user
		follows.NewHandler(deps.DB, follows.NewService(deps.DB)).RegisterRoutes(api)
	}

	return r
}

// mediaRoute is the local route for media.url; absolute URLs point elsewhere, so the
// default route is used for them
func mediaRoute(mediaURL string) string {
	if strings.HasPrefix(mediaURL, "/") {
		if prefix := strings.TrimRight(mediaURL, "/"); prefix != "" {
			return prefix
		}
	}
	return defaultMediaPrefix
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	cc.AllowAllOrigins = len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			cc.AllowAllOrigins = true
		}
	}
	if !cc.AllowAllOrigins {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

// Run serves r on the configured address, or with Let's Encrypt certificates when
// TLS domains are configured.
func Run(r *gin.Engine, cfg config.ServerConfig) error {
	if len(cfg.TLSDomains) > 0 {
		return autotls.Run(r, cfg.TLSDomains...)
	}
	return r.Run(cfg.Addr)
}
