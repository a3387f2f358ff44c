// Package httpapi serves the read surface: health, the ranked feed, single
// article lookups with their dedup and scoring detail, and a token-gated
// admin rescore trigger.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/sift/internal/auth"
	"horse.fit/sift/internal/db"
	"horse.fit/sift/internal/feed"
	"horse.fit/sift/internal/globaltime"
	"horse.fit/sift/internal/ingest"
	"horse.fit/sift/internal/scoring"
)

const maxFeedLimit = 100

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// AdminTokenHash is the bcrypt hash admin requests verify against.
	// Empty disables the admin routes.
	AdminTokenHash string
	// FeedLimit is the default feed size when the request has no limit.
	FeedLimit int
}

type Server struct {
	pool     *db.Pool
	logger   zerolog.Logger
	feeds    *feed.Service
	scores   *scoring.Service
	ingestor *ingest.Service
	opts     Options
}

func NewServer(pool *db.Pool, logger zerolog.Logger, feeds *feed.Service, scores *scoring.Service, ingestor *ingest.Service, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	feedLimit := opts.FeedLimit
	if feedLimit <= 0 {
		feedLimit = 10
	}

	return &Server{
		pool:     pool,
		logger:   logger,
		feeds:    feeds,
		scores:   scores,
		ingestor: ingestor,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AdminTokenHash:  opts.AdminTokenHash,
			FeedLimit:       feedLimit,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/feed", s.handleFeed)
	api.GET("/articles/:article_uuid", s.handleArticleDetail)
	api.POST("/articles", s.handleIngest)

	admin := api.Group("/admin", s.requireAdminToken)
	admin.POST("/rescore", s.handleRescore)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("sift api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("sift api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) requireAdminToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if strings.TrimSpace(s.opts.AdminTokenHash) == "" {
			return failNotFound(c, "Admin endpoints are disabled")
		}

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !auth.VerifyToken(token, s.opts.AdminTokenHash) {
			return failUnauthorized(c, "Invalid admin token")
		}
		return next(c)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.pool.QueryRow(c.Request().Context(), "SELECT 1").Scan(new(int)); err != nil {
		s.logger.Error().Err(err).Msg("health check database probe failed")
		return internalError(c, "Database unreachable")
	}
	return success(c, map[string]any{
		"service": "sift",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleFeed(c echo.Context) error {
	limit := s.opts.FeedLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxFeedLimit {
			return fail(c, http.StatusBadRequest, fmt.Sprintf("limit must be an integer between 1 and %d", maxFeedLimit), nil)
		}
		limit = parsed
	}

	entries, err := s.feeds.Feed(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("feed assembly failed")
		return internalError(c, "Failed to load feed")
	}
	return success(c, map[string]any{
		"items": entries,
		"limit": limit,
	})
}

type articleDetail struct {
	ArticleID             int64           `json:"article_id"`
	ArticleUUID           string          `json:"article_uuid"`
	URL                   string          `json:"url"`
	Title                 string          `json:"title"`
	Summary               *string         `json:"summary,omitempty"`
	Source                string          `json:"source"`
	Category              string          `json:"category"`
	Language              string          `json:"language"`
	WordCount             int             `json:"word_count"`
	ClusterID             string          `json:"cluster_id"`
	DuplicationConfidence float64         `json:"duplication_confidence"`
	ClusterSize           int             `json:"cluster_size"`
	FinalScore            *float64        `json:"final_score,omitempty"`
	ShouldInclude         *bool           `json:"should_include,omitempty"`
	ScoreComponents       json.RawMessage `json:"score_components,omitempty"`
	PublishedAt           *time.Time      `json:"published_at,omitempty"`
	CollectedAt           time.Time       `json:"collected_at"`
	ScoredAt              *time.Time      `json:"scored_at,omitempty"`
}

func (s *Server) handleArticleDetail(c echo.Context) error {
	articleUUID := strings.TrimSpace(c.Param("article_uuid"))
	if articleUUID == "" {
		return fail(c, http.StatusBadRequest, "article_uuid is required", nil)
	}

	detail, err := s.queryArticleDetail(c.Request().Context(), articleUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Article not found")
		}
		s.logger.Error().Err(err).Str("article_uuid", articleUUID).Msg("article lookup failed")
		return internalError(c, "Failed to load article")
	}
	return success(c, detail)
}

func (s *Server) queryArticleDetail(ctx context.Context, articleUUID string) (*articleDetail, error) {
	const q = `
SELECT a.article_id, a.article_uuid, a.url, a.title, a.summary,
       a.source_id, a.category, a.language, a.word_count,
       a.cluster_id, a.duplication_confidence,
       (SELECT count(*) FROM news.articles m WHERE m.cluster_id = a.cluster_id) AS cluster_size,
       a.final_score, a.should_include, a.score_components,
       a.published_at, a.collected_at, a.scored_at
FROM news.articles a
WHERE a.article_uuid = $1
`
	var (
		detail     articleDetail
		components []byte
	)
	err := s.pool.QueryRow(ctx, q, articleUUID).Scan(
		&detail.ArticleID, &detail.ArticleUUID, &detail.URL, &detail.Title, &detail.Summary,
		&detail.Source, &detail.Category, &detail.Language, &detail.WordCount,
		&detail.ClusterID, &detail.DuplicationConfidence,
		&detail.ClusterSize,
		&detail.FinalScore, &detail.ShouldInclude, &components,
		&detail.PublishedAt, &detail.CollectedAt, &detail.ScoredAt,
	)
	if err != nil {
		return nil, err
	}
	if len(components) > 0 {
		detail.ScoreComponents = json.RawMessage(components)
	}
	return &detail, nil
}

func (s *Server) handleIngest(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Failed to read request body", nil)
	}

	result, err := s.ingestor.Ingest(c.Request().Context(), body)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidPayload) {
			return fail(c, http.StatusUnprocessableEntity, err.Error(), nil)
		}
		s.logger.Error().Err(err).Msg("ingest failed")
		return internalError(c, "Ingest failed")
	}
	if result.Duplicate {
		return success(c, result)
	}
	return successWithStatus(c, http.StatusCreated, result)
}

func (s *Server) handleRescore(c echo.Context) error {
	result, err := s.scores.ScoreAll(c.Request().Context(), true)
	if err != nil {
		s.logger.Error().Err(err).Msg("admin rescore failed")
		return internalError(c, "Rescore failed")
	}
	return success(c, map[string]any{
		"score_run_id": result.ScoreRunID,
		"processed":    result.Processed,
		"included":     result.Included,
	})
}

func readBody(c echo.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
