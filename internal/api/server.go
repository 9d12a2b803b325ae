// Package api exposes the tuning results manager over a small read-only
// HTTP surface, for inspecting and persisting decisions on a live process.
package api

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tunable/internal/logger"
	"github.com/samcharles93/tunable/internal/version"
	"github.com/samcharles93/tunable/pkg/tunable"
)

type Server struct {
	manager     *tunable.TuningResultsManager
	resultsFile string
	session     string
	log         logger.Logger
}

// NewServer wraps a results manager. resultsFile may be empty, in which case
// the save endpoint is rejected.
func NewServer(manager *tunable.TuningResultsManager, resultsFile string, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		manager:     manager,
		resultsFile: resultsFile,
		session:     uuid.NewString(),
		log:         log,
	}
}

// Register mounts all routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/results", s.handleResults)
	e.GET("/v1/results/:op", s.handleOpResults)
	e.POST("/v1/results/save", s.handleSave)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"session": s.session,
		"version": version.String(),
		"results": s.manager.NumResults(),
	})
}

func (s *Server) handleResults(c *echo.Context) error {
	data, err := json.Marshal(s.manager)
	if err != nil {
		return writeInternal(c, "encode results: "+err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (s *Server) handleOpResults(c *echo.Context) error {
	opSig := c.Param("op")
	snapshot := s.manager.Results()
	ops, ok := snapshot[opSig]
	if !ok {
		return writeNotFound(c, "no results for operation "+opSig)
	}

	out := make(map[string]map[string]any, len(ops))
	for paramsSig, entry := range ops {
		out[paramsSig] = map[string]any{
			"candidate":   entry.Name,
			"duration_ms": float64(entry.Duration.Nanoseconds()) / 1e6,
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return writeInternal(c, "encode results: "+err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (s *Server) handleSave(c *echo.Context) error {
	if s.resultsFile == "" {
		return writeBadRequest(c, "no results file configured")
	}
	if err := s.manager.WriteFile(s.resultsFile); err != nil {
		s.log.Error("save results failed", "path", s.resultsFile, "error", err)
		return writeInternal(c, "save results: "+err.Error())
	}
	saved := s.manager.NumResults()
	s.log.Info("saved tuning results", "path", s.resultsFile, "results", saved)
	return c.JSON(http.StatusOK, map[string]any{
		"saved": saved,
		"path":  s.resultsFile,
	})
}
