package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/udv-group/stand-control-bot/internal/model"
	"github.com/udv-group/stand-control-bot/internal/service"
)

// HostsHandler exposes the host listing and lease endpoints.  All
// methods assume JWT authentication was performed by middleware and
// read the user identity and ad-group names from the echo context.
type HostsHandler struct {
	Hosts *service.HostsService
}

// NewHostsHandler constructs a HostsHandler and panics if the service
// dependency is nil.
func NewHostsHandler(hosts *service.HostsService) *HostsHandler {
	if hosts == nil {
		panic("nil service passed to NewHostsHandler")
	}
	return &HostsHandler{Hosts: hosts}
}

// hostView is the JSON shape of a host row.  Lease fields are omitted
// for free hosts.
type hostView struct {
	ID          int64  `json:"id"`
	Hostname    string `json:"hostname"`
	IPAddress   string `json:"ip_address"`
	GroupID     int64  `json:"group_id"`
	UserID      *int64 `json:"user_id,omitempty"`
	LeasedUntil string `json:"leased_until,omitempty"`
}

// leasedHostView is the JSON shape of a leased host joined with its
// owner.
type leasedHostView struct {
	ID          int64  `json:"id"`
	Hostname    string `json:"hostname"`
	IPAddress   string `json:"ip_address"`
	GroupID     int64  `json:"group_id"`
	LeasedUntil string `json:"leased_until"`
	UserLogin   string `json:"user_login"`
}

func toHostView(h model.Host) hostView {
	v := hostView{
		ID:        int64(h.ID),
		Hostname:  h.Hostname,
		IPAddress: h.IPAddress,
		GroupID:   int64(h.GroupID),
	}
	if h.UserID != nil {
		id := int64(*h.UserID)
		v.UserID = &id
	}
	if h.LeasedUntil != nil {
		v.LeasedUntil = h.LeasedUntil.UTC().Format(time.RFC3339)
	}
	return v
}

func toLeasedHostViews(hosts []model.LeasedHost) []leasedHostView {
	out := make([]leasedHostView, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, leasedHostView{
			ID:          int64(h.ID),
			Hostname:    h.Hostname,
			IPAddress:   h.IPAddress,
			GroupID:     int64(h.GroupID),
			LeasedUntil: h.LeasedUntil.UTC().Format(time.RFC3339),
			UserLogin:   h.User.Login,
		})
	}
	return out
}

// GetHosts handles GET /v1/hosts and returns every host in the pool,
// free and leased alike, ordered by ip address.
func (h *HostsHandler) GetHosts(c echo.Context) error {
	hosts, err := h.Hosts.GetAllHosts(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]hostView, 0, len(hosts))
	for _, host := range hosts {
		out = append(out, toHostView(host))
	}
	return c.JSON(http.StatusOK, echo.Map{"hosts": out})
}

// GetAvailableHosts handles GET /v1/hosts/available.  With a group_id
// query parameter the listing is narrowed to free hosts of that group.
func (h *HostsHandler) GetAvailableHosts(c echo.Context) error {
	var (
		hosts []model.Host
		err   error
	)
	if raw := c.QueryParam("group_id"); raw != "" {
		groupID, perr := model.ParseGroupID(raw)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group_id"})
		}
		hosts, err = h.Hosts.GetAvailableGroupHosts(c.Request().Context(), groupID)
	} else {
		hosts, err = h.Hosts.GetAvailableHosts(c.Request().Context())
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]hostView, 0, len(hosts))
	for _, host := range hosts {
		out = append(out, toHostView(host))
	}
	return c.JSON(http.StatusOK, echo.Map{"hosts": out})
}

// GetLeasedHosts handles GET /v1/hosts/leased and returns the hosts
// currently leased by the authenticated user, soonest expiry first.
func (h *HostsHandler) GetLeasedHosts(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	hosts, err := h.Hosts.GetLeasedHosts(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"hosts": toLeasedHostViews(hosts)})
}

// Lease handles POST /v1/hosts/lease.  The body names the hosts to
// lease and the lease length in minutes.  Hosts already leased, by the
// caller or anyone else, produce a 409 listing the conflicting ids;
// exceeding the lease quota produces a 409 as well.
func (h *HostsHandler) Lease(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		HostIDs         []int64 `json:"host_ids"`
		LeaseForMinutes int     `json:"lease_for_minutes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.LeaseForMinutes <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lease_for_minutes must be positive"})
	}
	ids := make([]model.HostID, 0, len(body.HostIDs))
	for _, id := range body.HostIDs {
		if id <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid host id"})
		}
		ids = append(ids, model.HostID(id))
	}
	leased, err := h.Hosts.Lease(c.Request().Context(), userID, getUserGroups(c), ids, time.Duration(body.LeaseForMinutes)*time.Minute)
	if err != nil {
		return leaseError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"hosts": toLeasedHostViews(leased)})
}

// LeaseRandom handles POST /v1/hosts/lease-random.  It picks the free
// host of the requested group with the lowest ip address and leases it
// to the caller.  An exhausted group produces a 404.
func (h *HostsHandler) LeaseRandom(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		GroupID         int64 `json:"group_id"`
		LeaseForMinutes int   `json:"lease_for_minutes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.GroupID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group_id"})
	}
	if body.LeaseForMinutes <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lease_for_minutes must be positive"})
	}
	leased, err := h.Hosts.LeaseRandom(c.Request().Context(), userID, getUserGroups(c), time.Duration(body.LeaseForMinutes)*time.Minute, model.GroupID(body.GroupID))
	if err != nil {
		return leaseError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"host": toLeasedHostViews([]model.LeasedHost{*leased})[0]})
}

// Free handles POST /v1/hosts/free and releases the named hosts if the
// caller owns them.  Freeing a host the caller does not hold is a
// no-op.
func (h *HostsHandler) Free(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		HostIDs []int64 `json:"host_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ids := make([]model.HostID, 0, len(body.HostIDs))
	for _, id := range body.HostIDs {
		if id <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid host id"})
		}
		ids = append(ids, model.HostID(id))
	}
	if err := h.Hosts.Free(c.Request().Context(), userID, ids); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.NoContent(http.StatusNoContent)
}

// FreeAll handles POST /v1/hosts/free-all and releases every lease the
// caller holds.
func (h *HostsHandler) FreeAll(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Hosts.FreeAll(c.Request().Context(), userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.NoContent(http.StatusNoContent)
}

// leaseError maps allocation failures onto HTTP responses: conflicts
// and quota violations are 409, an exhausted group is 404, anything
// else is a generic 500.
func leaseError(c echo.Context, err error) error {
	var conflict *service.AlreadyLeasedError
	switch {
	case errors.As(err, &conflict):
		ids := make([]int64, 0, len(conflict.HostIDs))
		for _, id := range conflict.HostIDs {
			ids = append(ids, int64(id))
		}
		return c.JSON(http.StatusConflict, echo.Map{"error": "hosts already leased", "host_ids": ids})
	case errors.Is(err, service.ErrLeaseLimit):
		return c.JSON(http.StatusConflict, echo.Map{"error": service.ErrLeaseLimit.Error()})
	case errors.Is(err, service.ErrNoFreeHosts):
		return c.JSON(http.StatusNotFound, echo.Map{"error": service.ErrNoFreeHosts.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}
