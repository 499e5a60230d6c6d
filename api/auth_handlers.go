package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

type credentialsRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type federatedRequest struct {
	IDToken string `json:"idToken" form:"idToken"`
}

type passwordResetRequest struct {
	Email string `json:"email" form:"email"`
}

type confirmResetRequest struct {
	Token    string `json:"token" form:"token"`
	Password string `json:"password" form:"password"`
}

const resetNotice = "If an account exists for that address, a reset link is on its way."

func (h *handlers) register(c echo.Context) error {
	var req credentialsRequest
	if err := h.readBody(c, &req); err != nil {
		return bodyFailure(c, "register", registerPage(), err)
	}
	s, err := h.Identity.SignUp(c.Request().Context(), req.Email, req.Password)
	return h.completeSignIn(c, "register", registerPage(), http.StatusCreated, s, err)
}

func (h *handlers) login(c echo.Context) error {
	var req credentialsRequest
	if err := h.readBody(c, &req); err != nil {
		return bodyFailure(c, "login", loginPage(), err)
	}
	s, err := h.Identity.SignIn(c.Request().Context(), req.Email, req.Password)
	return h.completeSignIn(c, "login", loginPage(), http.StatusOK, s, err)
}

func (h *handlers) federated(c echo.Context) error {
	var req federatedRequest
	if err := h.readBody(c, &req); err != nil {
		return bodyFailure(c, "login", loginPage(), err)
	}
	s, err := h.Identity.SignInFederated(c.Request().Context(), c.Param("provider"), req.IDToken)
	return h.completeSignIn(c, "login", loginPage(), http.StatusOK, s, err)
}

// bodyFailure answers an unreadable submission the same way completeSignIn
// answers a failed one.
func bodyFailure(c echo.Context, view string, p page, err error) error {
	if wantsHTML(c) {
		return renderFailure(c, view, p, err)
	}
	return writeError(c, err)
}

// completeSignIn maps a gateway result onto either a navigation to the
// protected area or a visible error.
func (h *handlers) completeSignIn(c echo.Context, view string, p page, status int, s domain.Session, err error) error {
	form := wantsHTML(c)
	if err != nil {
		if form {
			return renderFailure(c, view, p, err)
		}
		return writeError(c, err)
	}
	h.setSessionCookie(c, s)
	if form {
		return c.Redirect(http.StatusSeeOther, "/tasks")
	}
	return c.JSON(status, s)
}

func (h *handlers) logout(c echo.Context) error {
	s := sessionFrom(c)
	err := h.Identity.SignOut(c.Request().Context(), s)
	if n := h.Boards.DropOwner(s.UserKey); n > 0 {
		h.Logger.WithFields(log.Fields{"user": s.UserKey, "boards": n}).Debug("dropped boards on sign out")
	}
	h.clearSessionCookie(c)
	if err != nil {
		h.Logger.WithError(err).WithField("user", s.UserKey).Error("sign out")
		return writeError(c, err)
	}
	if wantsHTML(c) {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) logoutWithoutSession(c echo.Context, err error) error {
	h.clearSessionCookie(c)
	if wantsHTML(c) {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return unauthorized(c, err)
}

func (h *handlers) requestPasswordReset(c echo.Context) error {
	var req passwordResetRequest
	if err := h.readBody(c, &req); err != nil {
		return bodyFailure(c, "forgot-password", forgotPasswordPage(), err)
	}
	if err := h.Identity.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		h.Logger.WithError(err).Warn("password reset request failed")
	}
	if wantsHTML(c) {
		p := forgotPasswordPage()
		p.Notice = resetNotice
		return c.Render(http.StatusAccepted, "forgot-password", p)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *handlers) confirmPasswordReset(c echo.Context) error {
	var req confirmResetRequest
	if err := h.readBody(c, &req); err != nil {
		return writeError(c, err)
	}
	if err := h.Identity.ConfirmPasswordReset(c.Request().Context(), req.Token, req.Password); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
