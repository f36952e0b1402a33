package http

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finsite/internal/infrastructure/middleware"
	"finsite/pkg/cache"
	apperrors "finsite/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NoncePlaceholder in a page is replaced with the request's CSP nonce
const NoncePlaceholder = "{{csp_nonce}}"

const notFoundPage = "404"

// Pages served at the site root. "home" is mounted at "/".
var Pages = []string{"home", "about", "services", "onboarding", "contact"}

// PageHandler serves pre-rendered pages from a directory
type PageHandler struct {
	dir    string
	pages  *cache.Cache[[]byte]
	logger *zap.SugaredLogger
}

// NewPageHandler caches page bodies for cacheTTL; zero reads the file on
// every request, which suits development.
func NewPageHandler(dir string, cacheTTL time.Duration, logger *zap.SugaredLogger) *PageHandler {
	return &PageHandler{
		dir:    dir,
		pages:  cache.New[[]byte](cacheTTL),
		logger: logger,
	}
}

func (h *PageHandler) SetupRoutes(router *gin.Engine) {
	for _, page := range Pages {
		path := "/" + page
		if page == "home" {
			path = "/"
		}
		router.GET(path, h.Serve(page))
		router.HEAD(path, h.Serve(page))
	}
	router.NoRoute(h.NotFound)
}

func (h *PageHandler) Serve(page string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := h.load(c.Request.Context(), page)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				h.logger.Warnw("page file missing", "page", page, "dir", h.dir)
				h.NotFound(c)
				return
			}
			_ = c.Error(apperrors.NewInternalError(err, "failed to load page").WithContext("page", page))
			return
		}
		h.render(c, http.StatusOK, body)
	}
}

// NotFound answers API paths with JSON and everything else with the 404 page
func (h *PageHandler) NotFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		_ = c.Error(apperrors.NewNotFoundError("endpoint"))
		return
	}

	body, err := h.load(c.Request.Context(), notFoundPage)
	if err != nil {
		c.String(http.StatusNotFound, "404 page not found")
		return
	}
	h.render(c, http.StatusNotFound, body)
}

func (h *PageHandler) load(ctx context.Context, page string) ([]byte, error) {
	return h.pages.GetOrLoad(ctx, page, func(context.Context) ([]byte, error) {
		return os.ReadFile(filepath.Join(h.dir, page+".html"))
	})
}

func (h *PageHandler) render(c *gin.Context, status int, body []byte) {
	if nonce := c.GetString(middleware.NonceKey); nonce != "" {
		body = bytes.ReplaceAll(body, []byte(NoncePlaceholder), []byte(nonce))
	} else {
		body = bytes.ReplaceAll(body, []byte(` nonce="`+NoncePlaceholder+`"`), nil)
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(status, "text/html; charset=utf-8", body)
}
