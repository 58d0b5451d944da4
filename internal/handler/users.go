package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/udv-group/stand-control-bot/internal/service"
)

// UsersHandler exposes the account-linking endpoint that connects a
// user record to the delivery address notifications are sent to.
type UsersHandler struct {
	Users *service.UsersService
}

// NewUsersHandler constructs a UsersHandler and panics if the service
// dependency is nil.
func NewUsersHandler(users *service.UsersService) *UsersHandler {
	if users == nil {
		panic("nil service passed to NewUsersHandler")
	}
	return &UsersHandler{Users: users}
}

// Link handles POST /v1/users/link.  The caller presents the opaque
// link token from their linking URL together with the notification
// handle to store.  An unknown token produces a 404; tokens are single
// purpose, so retrying with the same token simply rewrites the handle.
func (h *UsersHandler) Link(c echo.Context) error {
	var body struct {
		Link   string `json:"link"`
		Handle string `json:"handle"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Link == "" || body.Handle == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "link and handle are required"})
	}
	user, err := h.Users.LinkUser(c.Request().Context(), body.Link, body.Handle)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown link token"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": int64(user.ID), "login": user.Login})
}
