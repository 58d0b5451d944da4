package handler

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/udv-group/stand-control-bot/internal/model"
)

// getUserID extracts the authenticated user id placed into the context
// by the JWT middleware and converts it to a model.UserID.
func getUserID(c echo.Context) (model.UserID, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case int64:
		return model.UserID(t), nil
	case model.UserID:
		return t, nil
	}
	return 0, errors.New("invalid user_id in context")
}

// getUserGroups extracts the ad-group names carried by the token's
// groups claim.  A missing or malformed value degrades to no groups,
// which resolves to the default lease limit downstream.
func getUserGroups(c echo.Context) []string {
	if groups, ok := c.Get("user_groups").([]string); ok {
		return groups
	}
	return nil
}
