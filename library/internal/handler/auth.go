package handler

import (
	"net/http"
	"strings"

	"github.com/Astemirdum/library-catalog/library/internal/model"
	md "github.com/Astemirdum/library-catalog/pkg/middleware"
	"github.com/labstack/echo/v4"
)

// Login godoc
// @Summary  Exchange the admin code for a session token
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body model.LoginRequest true "admin code"
// @Success  200 {object} model.LoginResponse
// @Failure  401 {object} echo.HTTPError
// @Router   /auth/login [post]
func (h *Handler) Login(c echo.Context) error {
	var req model.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token, err := h.authSvc.Login(c.Request().Context(), req.Code)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model.LoginResponse{AccessToken: token})
}

func (h *Handler) Logout(c echo.Context) error {
	token := strings.TrimPrefix(c.Request().Header.Get(md.AuthorizationHeader), "Bearer ")
	if err := h.authSvc.Logout(c.Request().Context(), token); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword godoc
// @Summary  Replace the admin code
// @Tags     auth
// @Security Bearer
// @Accept   json
// @Param    body body model.ChangePasswordRequest true "current and new code"
// @Success  204
// @Failure  403 {object} echo.HTTPError
// @Router   /auth/password [put]
func (h *Handler) ChangePassword(c echo.Context) error {
	var req model.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.authSvc.ChangePassword(c.Request().Context(), req.CurrentCode, req.NewCode); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
