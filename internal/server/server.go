// Package server exposes the agent over HTTP with the full request boundary:
// validation, sanitisation, rate limiting, abuse monitoring and response
// caching sit in front of every query.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/socialecho/internal/agent"
	"github.com/mohammad-safakhou/socialecho/internal/cache"
	"github.com/mohammad-safakhou/socialecho/internal/guard"
	"github.com/mohammad-safakhou/socialecho/internal/telemetry"
)

// Server wires the HTTP surface.
type Server struct {
	echo     *echo.Echo
	agent    *agent.EchoAgent
	caches   *cache.Manager
	monitor  *guard.Monitor
	limiter  *guard.RateLimiter
	breakers *guard.BreakerGroup
	metrics  *telemetry.Metrics
	logger   *log.Logger
}

// Deps carries everything the server needs.
type Deps struct {
	Agent        *agent.EchoAgent
	Caches       *cache.Manager
	Monitor      *guard.Monitor
	Limiter      *guard.RateLimiter
	Breakers     *guard.BreakerGroup
	Metrics      *telemetry.Metrics
	AllowOrigins []string
	Logger       *log.Logger
}

// New builds the server and registers routes.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.Writer(), "[SERVER] ", log.LstdFlags)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: deps.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	s := &Server{
		echo:     e,
		agent:    deps.Agent,
		caches:   deps.Caches,
		monitor:  deps.Monitor,
		limiter:  deps.Limiter,
		breakers: deps.Breakers,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}

	e.POST("/assist", s.handleAssist)
	e.GET("/healthz", s.handleHealth)
	e.GET("/info", s.handleInfo)
	e.GET("/stats", s.handleStats)
	e.GET("/security", s.handleSecurity)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Echo exposes the underlying router, for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start blocks serving on addr.
func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	return s.echo.Start(addr)
}

type assistRequest struct {
	SessionID string `json:"session_id"`
	Query     struct {
		Prompt  string `json:"prompt"`
		Context string `json:"context"`
	} `json:"query"`
}

type assistResponse struct {
	SessionID     string        `json:"session_id"`
	Events        []agent.Event `json:"events"`
	FinalResponse string        `json:"final_response"`
	Completed     bool          `json:"completed"`
	Cached        bool          `json:"cached,omitempty"`
}

func (s *Server) handleAssist(c echo.Context) error {
	clientIP := c.RealIP()

	if s.monitor.IsSuspicious(clientIP) {
		s.count("assist", "403")
		return echo.NewHTTPError(http.StatusForbidden, "access temporarily restricted")
	}

	if !s.limiter.Allow(clientIP, "assist") {
		s.monitor.LogRateLimitViolation(clientIP)
		s.metrics.RateLimited.Inc()
		s.count("assist", "429")
		retry := s.limiter.RetryAfter(clientIP, "assist")
		c.Response().Header().Set("Retry-After", retryAfterSeconds(retry))
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	var req assistRequest
	if err := c.Bind(&req); err != nil {
		s.count("assist", "400")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ok, reason := guard.ValidateQuery(req.Query.Prompt)
	if !ok {
		s.monitor.LogBlockedQuery(req.Query.Prompt, reason, clientIP)
		s.metrics.BlockedQuery.Inc()
		s.count("assist", "400")
		return echo.NewHTTPError(http.StatusBadRequest, reason)
	}

	if req.SessionID != "" && !guard.ValidateSessionID(req.SessionID) {
		s.count("assist", "400")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session_id")
	}

	sessionID := guard.SanitizeSessionID(req.SessionID)
	prompt := guard.SanitizeQuery(req.Query.Prompt)
	ctx := c.Request().Context()

	if cached, hit := s.caches.Query.Get(ctx, prompt); hit {
		s.metrics.CacheHits.Inc()
		s.count("assist", "200")
		if resp, ok := cached.(*assistResponse); ok {
			out := *resp
			out.SessionID = sessionID
			out.Cached = true
			return c.JSON(http.StatusOK, &out)
		}
		// Redis backend returns raw JSON.
		return c.JSONBlob(http.StatusOK, cachedBlob(cached))
	}
	s.metrics.CacheMisses.Inc()

	start := time.Now()
	collector := &agent.Collector{}
	if err := s.agent.Assist(ctx, prompt, collector); err != nil {
		s.count("assist", "500")
		return echo.NewHTTPError(http.StatusInternalServerError, "query processing failed")
	}
	s.metrics.QueryDuration.Observe(time.Since(start).Seconds())

	resp := &assistResponse{
		SessionID:     sessionID,
		Events:        collector.Events,
		FinalResponse: collector.FinalResponse,
		Completed:     collector.Completed,
	}
	if resp.Completed {
		_ = s.caches.Query.Set(ctx, prompt, resp)
	}
	s.count("assist", "200")
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c echo.Context) error {
	if !s.limiter.Allow(c.RealIP(), "health") {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}
	s.count("health", "200")
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(c echo.Context) error {
	if !s.limiter.Allow(c.RealIP(), "info") {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}
	s.count("info", "200")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"name":        "socialecho",
		"description": "Social media query answering agent for Reddit and Twitter.",
		"version":     "1.0.0",
		"capabilities": []string{
			"query understanding",
			"reddit search",
			"twitter search",
			"summaries and sentiment",
			"weighted relevance ranking",
		},
		"example_queries": []string{
			"What do people think about Go generics?",
			"Trending discussions in r/programming this week",
			"Reactions on twitter to the latest release",
		},
		"filters": map[string]string{
			"time_range": "day|week|month|year (default week)",
			"subreddit":  "restrict the Reddit search",
			"sentiment":  "positive|negative|neutral|any",
		},
		"endpoints": map[string]string{
			"assist":   "POST /assist",
			"health":   "GET /healthz",
			"stats":    "GET /stats",
			"security": "GET /security",
			"metrics":  "GET /metrics",
		},
	})
}

func (s *Server) handleStats(c echo.Context) error {
	if !s.limiter.Allow(c.RealIP(), "stats") {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"requests": s.metrics.RequestSnapshot(),
		"caches":   s.caches.Stats(c.Request().Context()),
	})
}

func (s *Server) handleSecurity(c echo.Context) error {
	if !s.limiter.Allow(c.RealIP(), "security") {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"monitor":  s.monitor.Stats(),
		"breakers": s.breakers.States(),
		"caches":   s.caches.Stats(ctx),
	})
}

func (s *Server) count(endpoint, status string) {
	if s.metrics != nil {
		s.metrics.CountRequest(endpoint, status)
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func cachedBlob(v interface{}) []byte {
	switch raw := v.(type) {
	case json.RawMessage:
		return raw
	case []byte:
		return raw
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return []byte("{}")
		}
		return b
	}
}
