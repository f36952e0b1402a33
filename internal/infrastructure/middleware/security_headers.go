package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"finsite/pkg/config"
	"finsite/pkg/utils"
	"finsite/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NonceKey is the gin context key holding the request's CSP script nonce
const NonceKey = "csp_nonce"

const (
	headerContentTypeOptions = "X-Content-Type-Options"
	headerFrameOptions       = "X-Frame-Options"
	headerReferrerPolicy     = "Referrer-Policy"
	headerPermissionsPolicy  = "Permissions-Policy"
	headerCSP                = "Content-Security-Policy"
	headerHSTS               = "Strict-Transport-Security"

	permissionsPolicy = "camera=(), microphone=(), geolocation=(), interest-cohort=()"
	nonceBytes        = 16
)

// SecurityOption customises NewSecurityHeadersMiddleware
type SecurityOption func(*securityHeaders)

// WithNonceGenerator replaces the crypto/rand nonce source
func WithNonceGenerator(fn func() (string, error)) SecurityOption {
	return func(s *securityHeaders) { s.nonce = fn }
}

// WithFallbackRecorder is called each time a response gets only the
// minimal header set
func WithFallbackRecorder(fn func()) SecurityOption {
	return func(s *securityHeaders) { s.onFallback = fn }
}

type securityHeaders struct {
	production   bool
	staticPrefix string
	hsts         string

	// directives are fixed per process; only the script nonce varies
	scriptSources string
	directives    []string
	configErr     error

	nonce      func() (string, error)
	onFallback func()
	logger     *zap.SugaredLogger
}

// NewSecurityHeadersMiddleware sets browser hardening headers on page
// responses. API routes, static assets and the favicon are left alone.
func NewSecurityHeadersMiddleware(cfg *config.Config, logger *zap.SugaredLogger, opts ...SecurityOption) gin.HandlerFunc {
	s := &securityHeaders{
		production:   cfg.IsProduction(),
		staticPrefix: cfg.Site.StaticPrefix,
		nonce:        func() (string, error) { return utils.GenerateNonce(nonceBytes) },
		onFallback:   func() {},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Security.HSTSMaxAge > 0 {
		s.hsts = "max-age=" + strconv.Itoa(cfg.Security.HSTSMaxAge) + "; includeSubDomains; preload"
	}

	s.configErr = s.compile(cfg)
	if s.configErr != nil {
		logger.Errorw("invalid content security policy configuration, serving minimal headers",
			"error", s.configErr,
		)
	}

	return s.handle
}

func (s *securityHeaders) compile(cfg *config.Config) error {
	sec := cfg.Security
	for _, group := range [][]string{sec.ScriptSources, sec.StyleSources, sec.ConnectSources, sec.ImageSources} {
		for _, src := range group {
			if err := validation.ValidateSource(src); err != nil {
				return err
			}
		}
	}

	script := []string{"'self'"}
	connect := []string{"'self'"}
	if !s.production {
		script = append(script, "'unsafe-eval'", "'unsafe-inline'")
		connect = append(connect, "ws:")
	}
	s.scriptSources = strings.Join(append(script, sec.ScriptSources...), " ")

	s.directives = []string{
		"default-src 'self'",
		directive("style-src", append([]string{"'self'", "'unsafe-inline'"}, sec.StyleSources...)),
		directive("img-src", append([]string{"'self'", "data:", "https:"}, sec.ImageSources...)),
		"font-src 'self' data:",
		directive("connect-src", append(connect, sec.ConnectSources...)),
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}
	if s.production {
		s.directives = append(s.directives, "upgrade-insecure-requests")
	}
	return nil
}

func directive(name string, sources []string) string {
	return name + " " + strings.Join(sources, " ")
}

func (s *securityHeaders) skip(path string) bool {
	return path == "/api" ||
		strings.HasPrefix(path, "/api/") ||
		(s.staticPrefix != "" && strings.HasPrefix(path, s.staticPrefix)) ||
		path == "/favicon.ico"
}

func (s *securityHeaders) handle(c *gin.Context) {
	if s.skip(c.Request.URL.Path) {
		c.Next()
		return
	}

	h := c.Writer.Header()
	h.Set(headerContentTypeOptions, "nosniff")
	h.Set(headerFrameOptions, "DENY")
	h.Set(headerReferrerPolicy, "strict-origin-when-cross-origin")
	h.Set(headerPermissionsPolicy, permissionsPolicy)

	policy, nonce, err := s.policy()
	if err != nil {
		s.logger.Errorw("failed to build content security policy",
			"error", err,
			"path", c.Request.URL.Path,
		)
		s.onFallback()
		c.Next()
		return
	}

	h.Set(headerCSP, policy)
	if s.production && s.hsts != "" {
		h.Set(headerHSTS, s.hsts)
	}
	if nonce != "" {
		c.Set(NonceKey, nonce)
	}
	c.Next()
}

// policy renders the CSP for one request
func (s *securityHeaders) policy() (string, string, error) {
	if s.configErr != nil {
		return "", "", s.configErr
	}

	script := s.scriptSources
	var nonce string
	if s.production {
		var err error
		nonce, err = s.nonce()
		if err != nil {
			return "", "", fmt.Errorf("generate nonce: %w", err)
		}
		script = "'self' 'nonce-" + nonce + "'" + strings.TrimPrefix(script, "'self'")
	}

	parts := make([]string, 0, len(s.directives)+1)
	parts = append(parts, s.directives[0], "script-src "+script)
	parts = append(parts, s.directives[1:]...)
	return strings.Join(parts, "; "), nonce, nil
}
