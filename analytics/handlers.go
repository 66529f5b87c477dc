package analytics

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	defaultStatsDays = 30
	maxStatsDays     = 365
	maxPathLen       = 2048
)

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(key string) bool
}

// Handler serves the stats endpoint and records page views.
type Handler struct {
	store   *Store
	token   string
	logger  *slog.Logger
	limiter Limiter
}

// NewHandler creates a new analytics handler. The stats endpoint requires
// token as a bearer credential; limiter, when non-nil, throttles it per IP.
func NewHandler(store *Store, token string, limiter Limiter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		token:   token,
		logger:  logger,
		limiter: limiter,
	}
}

// Stats handles GET /api/stats?days=N. It responds 404 when no token is
// configured so the endpoint is indistinguishable from an unknown route.
func (h *Handler) Stats(c echo.Context) error {
	if h.token == "" {
		return echo.ErrNotFound
	}
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
	}
	got, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	days := defaultStatsDays
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxStatsDays {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "days must be between 1 and 365"})
		}
		days = n
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	stats, err := h.store.GetStats(c.Request().Context(), from, to.Add(time.Second))
	if err != nil {
		return err
	}
	stats.Days = days
	return c.JSON(http.StatusOK, stats)
}

// Middleware records successful HTML page views by non-bot clients.
// Recording failures are logged and never affect the response.
func (h *Handler) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil || !h.shouldRecord(c) {
			return err
		}
		ua := c.Request().UserAgent()
		browser, os, device := ParseUserAgent(ua)
		v := &Visit{
			IPHash:    HashIP(c.RealIP()),
			Browser:   browser,
			OS:        os,
			Device:    device,
			Path:      c.Request().URL.Path,
			Timestamp: time.Now(),
		}
		if serr := h.store.SaveVisit(c.Request().Context(), v); serr != nil {
			h.logger.Warn("record visit failed", "path", v.Path, "error", serr)
		}
		return nil
	}
}

func (h *Handler) shouldRecord(c echo.Context) bool {
	req := c.Request()
	if req.Method != http.MethodGet || c.Response().Status != http.StatusOK {
		return false
	}
	if req.Header.Get("DNT") == "1" || IsBot(req.UserAgent()) {
		return false
	}
	if len(req.URL.Path) > maxPathLen {
		return false
	}
	ct := c.Response().Header().Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMETextHTML)
}
