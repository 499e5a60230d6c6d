package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
	"taskflow/feed"
)

const defaultMaxUploadSize = 10 << 20

type handlers struct {
	Dependencies
}

// Register wires up all view and API routes on the provided Echo instance.
func Register(e *echo.Echo, deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = log.StandardLogger()
	}
	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = defaultMaxUploadSize
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handlers{Dependencies: deps}

	e.JSONSerializer = sonicSerializer{}
	e.Renderer = viewRenderer{templates: viewTemplates}

	viewGuard := requireSession(deps.Identity, redirectToEntry)
	apiGuard := requireSession(deps.Identity, unauthorized)

	e.GET("/", h.view(loginPage))
	e.GET("/register", h.view(registerPage))
	e.GET("/forgot-password", h.view(forgotPasswordPage))
	e.GET("/tasks", h.tasksView, viewGuard)
	e.GET("/feed", h.feedView, viewGuard)

	auth := e.Group("/api/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
	auth.POST("/federated/:provider", h.federated)
	auth.POST("/logout", h.logout, requireSession(deps.Identity, h.logoutWithoutSession))
	auth.POST("/password-reset", h.requestPasswordReset)
	auth.POST("/password-reset/confirm", h.confirmPasswordReset)

	boards := e.Group("/api/boards", apiGuard)
	boards.POST("", h.mountBoard)
	boards.GET("/:id", h.getBoard)
	boards.DELETE("/:id", h.unmountBoard)
	boards.POST("/:id/tasks", h.createTask)
	boards.POST("/:id/moves", h.moveTask)
	boards.DELETE("/:id/tasks/:category/:taskId", h.deleteTask)
	boards.GET("/:id/stream", h.streamBoard)

	e.GET("/api/feed", h.listImages, apiGuard)
	e.POST("/api/feed", h.uploadImage, apiGuard)

	e.GET("/healthz", h.healthz)
}

func (h *handlers) healthz(c echo.Context) error {
	if h.Health == nil {
		return c.NoContent(http.StatusOK)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.Health(ctx); err != nil {
		h.Logger.WithError(err).Warn("health check failed")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "unhealthy"})
	}
	return c.NoContent(http.StatusOK)
}

// wantsHTML reports whether the request was submitted by one of the HTML
// views rather than an API client.
func wantsHTML(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

func (h *handlers) view(build func() page) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, viewName(c.Path()), build())
	}
}

func viewName(path string) string {
	if path == "/" {
		return "login"
	}
	return strings.TrimPrefix(path, "/")
}

// renderFailure re-renders a view with the error shown to the user.
func renderFailure(c echo.Context, name string, p page, err error) error {
	status := statusForError(err)
	p.Error = messageForError(err, status)
	return c.Render(status, name, p)
}

func (h *handlers) tasksView(c echo.Context) error {
	s := sessionFrom(c)
	id := h.Boards.Mount(s.UserKey)
	return c.Render(http.StatusOK, "tasks", tasksPage(s, id))
}

func (h *handlers) feedView(c echo.Context) error {
	s := sessionFrom(c)
	ctrl := feed.NewController(s.UserKey, h.Feed, h.Events, h.Logger)
	images, err := ctrl.Load(c.Request().Context())
	if err != nil {
		h.Logger.WithError(err).WithField("user", s.UserKey).Error("load feed")
		return renderFailure(c, "feed", feedPage(s, nil), err)
	}
	return c.Render(http.StatusOK, "feed", feedPage(s, images))
}

func (h *handlers) setSessionCookie(c echo.Context, s domain.Session) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handlers) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handlers) readBody(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body").SetInternal(err)
		}
		return err
	}
	return nil
}

func limitedReadAll(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return nil, true, nil
	}
	return data, false, nil
}
