package folio

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/views"
)

// maxUnlockBody caps the unlock request body.
const maxUnlockBody = 4 << 10

type unlockRequest struct {
	Password *string `json:"password"`
}

type unlockResponse struct {
	OK      bool   `json:"ok,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleUnlockPage renders the password form. The hint comes from the item
// the visitor was heading to, when it has one.
func (a *App) handleUnlockPage(section string) echo.HandlerFunc {
	return func(c echo.Context) error {
		from := safeFrom(section, c.QueryParam("from"))
		if a.sectionPassword(section) == "" || IsUnlocked(c, section) {
			return c.Redirect(http.StatusFound, from)
		}
		meta := views.PageMeta{Title: "Password required", NoIndex: true}
		data := views.UnlockData{Section: section, From: from, Hint: a.hintFor(section, from)}
		return a.renderPage(c, http.StatusOK, views.UnlockPage, a.page(section, meta, data))
	}
}

func (a *App) hintFor(section, from string) string {
	parts := strings.Split(strings.Trim(strings.SplitN(from, "?", 2)[0], "/"), "/")
	switch {
	case section == SectionAlbums && len(parts) == 2:
		if d, err := a.Albums.Detail(parts[1]); err == nil {
			return d.PasswordHint
		}
	case section == SectionNotes && len(parts) == 3:
		if p, err := a.Posts.GetBySlug(parts[1], parts[2], a.Config.IncludeDrafts()); err == nil {
			return p.PasswordHint
		}
	}
	return ""
}

// handleUnlock checks a section password and marks the session unlocked.
// Responses: 503 when the section has no password, 400 for a malformed body,
// 429 when the client is rate limited, 401 for a wrong or empty password and
// 200 {"ok":true} on success.
func (a *App) handleUnlock(section string) echo.HandlerFunc {
	return func(c echo.Context) error {
		want := a.sectionPassword(section)
		if want == "" {
			a.Logger.Warn("unlock attempted but no password configured", "section", section)
			return c.JSON(http.StatusServiceUnavailable, unlockResponse{Message: "Password protection is not configured."})
		}

		var req unlockRequest
		body := http.MaxBytesReader(c.Response(), c.Request().Body, maxUnlockBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return c.JSON(http.StatusBadRequest, unlockResponse{Message: "Malformed request."})
		}

		ip := c.RealIP()
		if !a.unlockLimiter.Check(ip) {
			return c.JSON(http.StatusTooManyRequests, unlockResponse{Message: "Too many attempts. Try again in a minute."})
		}

		if req.Password == nil || *req.Password == "" ||
			subtle.ConstantTimeCompare([]byte(*req.Password), []byte(want)) != 1 {
			a.unlockLimiter.Record(ip)
			return c.JSON(http.StatusUnauthorized, unlockResponse{Message: "Incorrect password."})
		}

		a.unlockLimiter.Reset(ip)
		if err := setUnlocked(c, section); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, unlockResponse{OK: true})
	}
}
