package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spider-crawler/pageview/internal/report"
	"github.com/spider-crawler/pageview/internal/session"
	"github.com/spider-crawler/pageview/internal/urlutil"
)

const defaultHistoryLimit = 50

type urlRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error          string `json:"error"`
	OpenedExternal bool   `json:"opened_external,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pageview",
		"version": s.deps.Version,
		"uptime":  time.Since(s.start).Truncate(time.Second).String(),
	})
}

// fetchURL answers 400 for invalid URLs and 502 when the fetch fails. HTTP
// error statuses from the origin are successful results.
func (s *Server) fetchURL(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := urlutil.Validate(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.deps.Commands.FetchURL(c.Request.Context(), req.URL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) openExternalURL(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := urlutil.Validate(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.deps.Commands.OpenExternalURL(req.URL); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// view renders a page for an embedded frame.
func (s *Server) view(c *gin.Context) {
	v, err := s.deps.Browser.Navigate(c.Request.Context(), c.Query("url"))
	if err != nil {
		s.browseError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(v.HTML))
}

func (s *Server) navigate(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	v, err := s.deps.Browser.Navigate(c.Request.Context(), req.URL)
	s.respondView(c, v, err)
}

func (s *Server) back(c *gin.Context) {
	v, err := s.deps.Browser.Back(c.Request.Context())
	s.respondView(c, v, err)
}

func (s *Server) forward(c *gin.Context) {
	v, err := s.deps.Browser.Forward(c.Request.Context())
	s.respondView(c, v, err)
}

func (s *Server) reload(c *gin.Context) {
	v, err := s.deps.Browser.Reload(c.Request.Context())
	s.respondView(c, v, err)
}

func (s *Server) respondView(c *gin.Context, v *session.View, err error) {
	if err != nil {
		s.browseError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) browseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrOpenedExternally):
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), OpenedExternal: true})
	case errors.Is(err, session.ErrNoHistory):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case isValidationError(err):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, urlutil.ErrEmpty) ||
		errors.Is(err, urlutil.ErrUnsupportedScheme) ||
		errors.Is(err, urlutil.ErrMalformed)
}

func (s *Server) history(c *gin.Context) {
	if s.deps.Visits == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "visit log disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	visits, err := s.deps.Visits.ListVisits(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list visits"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"visits": visits, "count": len(visits)})
}

func (s *Server) stats(c *gin.Context) {
	if s.deps.Visits == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "visit log disabled"})
		return
	}

	stats, err := s.deps.Visits.GetStats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to read stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) export(c *gin.Context) {
	if s.deps.Visits == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "visit log disabled"})
		return
	}

	format, err := report.ParseFormat(c.DefaultQuery("format", string(report.FormatCSV)))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	visits, err := s.deps.Visits.ListVisits(c.Request.Context(), 0)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list visits"})
		return
	}

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", `attachment; filename="visits.`+string(format)+`"`)
	c.Status(http.StatusOK)

	exp := report.NewExporter(&report.ExportOptions{Format: format, Delimiter: ','})
	if err := exp.Write(c.Writer, report.VisitReport(visits)); err != nil {
		_ = c.Error(err)
	}
}
