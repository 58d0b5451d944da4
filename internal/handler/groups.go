package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/udv-group/stand-control-bot/internal/service"
)

// GroupsHandler exposes the read-only group listing used by clients to
// populate group pickers before asking for a random host.
type GroupsHandler struct {
	Groups *service.GroupsService
}

// NewGroupsHandler constructs a GroupsHandler and panics if the
// service dependency is nil.
func NewGroupsHandler(groups *service.GroupsService) *GroupsHandler {
	if groups == nil {
		panic("nil service passed to NewGroupsHandler")
	}
	return &GroupsHandler{Groups: groups}
}

// GetGroups handles GET /v1/groups and returns every host group.
func (h *GroupsHandler) GetGroups(c echo.Context) error {
	groups, err := h.Groups.GetAllGroups(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	type groupView struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupView{ID: int64(g.ID), Name: g.Name})
	}
	return c.JSON(http.StatusOK, echo.Map{"groups": out})
}
