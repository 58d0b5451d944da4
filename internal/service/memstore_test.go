package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/udv-group/stand-control-bot/internal/model"
	"github.com/udv-group/stand-control-bot/internal/registry"
)

// memStore is an in-memory registry.Store used by the service tests.
// Writes apply immediately and Commit/Rollback are no-ops; the tests
// drive the services from a single goroutine, so transactional
// isolation is not exercised here, only the query semantics.
type memStore struct {
	hosts      map[model.HostID]*model.Host
	users      map[model.UserID]*model.User
	groups     []model.Group
	limits     map[string]int
	nextUserID model.UserID

	beginErr error
	// freeErr fails FreeHosts; leasedUntilErr fails GetLeasedUntilHosts
	// after letting leasedUntilErrSkip calls through, so one sweep pass
	// can fail while the other keeps working.
	freeErr            error
	leasedUntilErr     error
	leasedUntilErrSkip int
}

func newMemStore() *memStore {
	return &memStore{
		hosts:      make(map[model.HostID]*model.Host),
		users:      make(map[model.UserID]*model.User),
		limits:     make(map[string]int),
		nextUserID: 1,
	}
}

func (s *memStore) addUser(id model.UserID, login string, handle *string) *model.User {
	u := &model.User{ID: id, Login: login, NotificationHandle: handle, Link: "link-" + id.String()}
	s.users[id] = u
	if id >= s.nextUserID {
		s.nextUserID = id + 1
	}
	return u
}

func (s *memStore) addHost(id model.HostID, hostname, ip string, groupID model.GroupID) {
	s.hosts[id] = &model.Host{ID: id, Hostname: hostname, IPAddress: ip, GroupID: groupID}
}

func (s *memStore) lease(id model.HostID, userID model.UserID, until time.Time) {
	h := s.hosts[id]
	uid := userID
	u := until.UTC()
	h.UserID = &uid
	h.LeasedUntil = &u
}

func (s *memStore) Begin(ctx context.Context) (registry.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &memTx{s: s}, nil
}

// memTx applies every operation straight onto the backing store.
type memTx struct {
	s *memStore
}

func (t *memTx) Commit() error   { return nil }
func (t *memTx) Rollback() error { return nil }

func (t *memTx) hostsByIP(keep func(*model.Host) bool) []model.Host {
	out := make([]model.Host, 0)
	for _, h := range t.s.hosts {
		if keep(h) {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IPAddress < out[j].IPAddress })
	return out
}

func (t *memTx) GetAllHosts(ctx context.Context) ([]model.Host, error) {
	return t.hostsByIP(func(*model.Host) bool { return true }), nil
}

func (t *memTx) GetAvailableHosts(ctx context.Context) ([]model.Host, error) {
	return t.hostsByIP(func(h *model.Host) bool { return h.UserID == nil }), nil
}

func (t *memTx) GetAvailableGroupHosts(ctx context.Context, groupID model.GroupID) ([]model.Host, error) {
	return t.hostsByIP(func(h *model.Host) bool { return h.UserID == nil && h.GroupID == groupID }), nil
}

func (t *memTx) GetFirstAvailableGroupHost(ctx context.Context, groupID model.GroupID) (*model.Host, error) {
	free := t.hostsByIP(func(h *model.Host) bool { return h.UserID == nil && h.GroupID == groupID })
	if len(free) == 0 {
		return nil, nil
	}
	return &free[0], nil
}

func (t *memTx) GetHosts(ctx context.Context, ids []model.HostID) ([]model.Host, error) {
	want := make(map[model.HostID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return t.hostsByIP(func(h *model.Host) bool {
		_, ok := want[h.ID]
		return ok
	}), nil
}

func (t *memTx) leasedHost(h *model.Host) model.LeasedHost {
	return model.LeasedHost{
		ID:          h.ID,
		Hostname:    h.Hostname,
		IPAddress:   h.IPAddress,
		GroupID:     h.GroupID,
		LeasedUntil: *h.LeasedUntil,
		User:        *t.s.users[*h.UserID],
	}
}

func (t *memTx) leasedByExpiry(keep func(*model.Host) bool) []model.LeasedHost {
	out := make([]model.LeasedHost, 0)
	for _, h := range t.s.hosts {
		if h.UserID != nil && keep(h) {
			out = append(out, t.leasedHost(h))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LeasedUntil.Equal(out[j].LeasedUntil) {
			return out[i].LeasedUntil.Before(out[j].LeasedUntil)
		}
		return out[i].IPAddress < out[j].IPAddress
	})
	return out
}

func (t *memTx) GetLeasedHost(ctx context.Context, id model.HostID) (*model.LeasedHost, error) {
	h, ok := t.s.hosts[id]
	if !ok || h.UserID == nil {
		return nil, errors.New("host is not leased")
	}
	lh := t.leasedHost(h)
	return &lh, nil
}

func (t *memTx) GetLeasedHosts(ctx context.Context, userID model.UserID) ([]model.LeasedHost, error) {
	return t.leasedByExpiry(func(h *model.Host) bool { return *h.UserID == userID }), nil
}

func (t *memTx) GetLeasedUntilHosts(ctx context.Context, until time.Time) ([]model.LeasedHost, error) {
	if t.s.leasedUntilErr != nil {
		if t.s.leasedUntilErrSkip > 0 {
			t.s.leasedUntilErrSkip--
		} else {
			return nil, t.s.leasedUntilErr
		}
	}
	return t.leasedByExpiry(func(h *model.Host) bool { return h.LeasedUntil.Before(until) }), nil
}

func (t *memTx) LeaseHosts(ctx context.Context, userID model.UserID, ids []model.HostID, until time.Time) (int64, error) {
	var affected int64
	for _, id := range ids {
		h, ok := t.s.hosts[id]
		if !ok || h.UserID != nil {
			continue
		}
		t.s.lease(id, userID, until)
		affected++
	}
	return affected, nil
}

func (t *memTx) FreeHostsForUser(ctx context.Context, ids []model.HostID, userID model.UserID) error {
	for _, id := range ids {
		if h, ok := t.s.hosts[id]; ok && h.UserID != nil && *h.UserID == userID {
			h.UserID = nil
			h.LeasedUntil = nil
		}
	}
	return nil
}

func (t *memTx) FreeHosts(ctx context.Context, ids []model.HostID) error {
	if t.s.freeErr != nil {
		return t.s.freeErr
	}
	for _, id := range ids {
		if h, ok := t.s.hosts[id]; ok {
			h.UserID = nil
			h.LeasedUntil = nil
		}
	}
	return nil
}

func (t *memTx) FreeAllHosts(ctx context.Context, userID model.UserID) error {
	for _, h := range t.s.hosts {
		if h.UserID != nil && *h.UserID == userID {
			h.UserID = nil
			h.LeasedUntil = nil
		}
	}
	return nil
}

func (t *memTx) GetUserByID(ctx context.Context, id model.UserID) (*model.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (t *memTx) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	for _, u := range t.s.users {
		if u.Login == login {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (t *memTx) GetUserByLink(ctx context.Context, link string) (*model.User, error) {
	for _, u := range t.s.users {
		if u.Link == link {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (t *memTx) SetUserNotificationHandle(ctx context.Context, id model.UserID, handle string) error {
	if u, ok := t.s.users[id]; ok {
		h := handle
		u.NotificationHandle = &h
	}
	return nil
}

func (t *memTx) AddUser(ctx context.Context, login string, handle *string, email string) (model.UserID, error) {
	id := t.s.nextUserID
	t.s.nextUserID++
	u := t.s.addUser(id, login, handle)
	if email != "" {
		e := email
		u.Email = &e
	}
	return id, nil
}

func (t *memTx) GetGroups(ctx context.Context) ([]model.Group, error) {
	out := make([]model.Group, len(t.s.groups))
	copy(out, t.s.groups)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) GetAdGroupLeaseLimits(ctx context.Context, groupNames []string) ([]model.AdGroupLeaseLimit, error) {
	out := make([]model.AdGroupLeaseLimit, 0)
	for _, name := range groupNames {
		if limit, ok := t.s.limits[name]; ok {
			out = append(out, model.AdGroupLeaseLimit{GroupName: name, Limit: limit})
		}
	}
	return out, nil
}

// recordingSender captures every message the notifier hands to the
// transport.
type recordingSender struct {
	sent []sentMessage
	err  error
}

type sentMessage struct {
	handle string
	text   string
}

func (s *recordingSender) SendMessage(ctx context.Context, handle, text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{handle: handle, text: text})
	return nil
}

func strptr(s string) *string { return &s }
