// Package server exposes the extraction engine over HTTP: clients name an
// on-chain program, the server fetches its bytecode over RPC, runs the
// extraction pipeline and returns the report.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeymeere/auger/pkg/auger"
	"github.com/joeymeere/auger/pkg/extract"
	"github.com/joeymeere/auger/pkg/fetch"
)

func log() *slog.Logger {
	return slog.With("component", "server.Server")
}

// programFetcher retrieves the ELF image of an on-chain program.
type programFetcher interface {
	ProgramDump(ctx context.Context, programID string) ([]byte, error)
}

type Server struct {
	cfg     *auger.Config
	fetcher programFetcher
	cache   *reportCache
	metrics *metrics
	router  *gin.Engine
	log     *slog.Logger
}

func New(cfg *auger.Config) *Server {
	return newServer(cfg, fetch.NewClient(cfg.Server.RPCURL, cfg.Server.RPCTimeout))
}

func newServer(cfg *auger.Config, fetcher programFetcher) *Server {
	s := &Server{
		cfg:     cfg,
		fetcher: fetcher,
		cache: newReportCache(cfg.Server.CacheLen, cfg.Server.CacheTTL,
			cfg.Server.RedisAddr, cfg.Server.RedisPassword),
		log: log(),
	}

	reg := prometheus.NewRegistry()
	s.metrics = newMetrics(reg)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), apiKeyAuth(cfg.Server.APIKeys))
	r.GET("/status", s.status)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/v1/extract", s.extract)
	s.router = r
	return s
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	hs := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.router,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "address", hs.Addr)
		errCh <- hs.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return hs.Shutdown(shutCtx)
	}
}

func (s *Server) status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) extract(ctx *gin.Context) {
	programID := ctx.Query("program_id")
	if programID == "" {
		s.metrics.requests.WithLabelValues("bad_request").Inc()
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "program_id query parameter is required"})
		return
	}

	if body, ok := s.cache.Get(ctx.Request.Context(), programID); ok {
		s.metrics.cacheHits.Inc()
		s.metrics.requests.WithLabelValues("ok").Inc()
		ctx.Data(http.StatusOK, "application/json", body)
		return
	}

	start := time.Now()
	bin, err := s.fetcher.ProgramDump(ctx.Request.Context(), programID)
	if err != nil {
		s.fetchError(ctx, programID, err)
		return
	}

	res, err := extract.Extract(bin, s.cfg.ServerExtractConfig())
	if err != nil {
		s.metrics.requests.WithLabelValues("extract_error").Inc()
		s.log.Error("extraction failed", "program", programID, "error", err)
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	s.metrics.extractDuration.Observe(time.Since(start).Seconds())

	// The recovered text can be megabytes of binary noise; API clients get
	// the structured report only.
	res.Text = ""
	body, err := json.Marshal(res)
	if err != nil {
		s.metrics.requests.WithLabelValues("extract_error").Inc()
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.cache.Put(ctx.Request.Context(), programID, body)
	s.metrics.requests.WithLabelValues("ok").Inc()
	ctx.Data(http.StatusOK, "application/json", body)
}

func (s *Server) fetchError(ctx *gin.Context, programID string, err error) {
	switch {
	case errors.Is(err, fetch.ErrInvalidProgramID):
		s.metrics.requests.WithLabelValues("bad_request").Inc()
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, fetch.ErrAccountNotFound),
		errors.Is(err, fetch.ErrProgramClosed):
		s.metrics.requests.WithLabelValues("not_found").Inc()
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, fetch.ErrNotAProgram):
		s.metrics.requests.WithLabelValues("bad_request").Inc()
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.metrics.requests.WithLabelValues("rpc_error").Inc()
		s.log.Error("program fetch failed", "program", programID, "error", err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
