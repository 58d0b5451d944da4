package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/udv-group/stand-control-bot/internal/model"
	"github.com/udv-group/stand-control-bot/internal/registry"
)

// NotificationKind distinguishes the two messages the release timer
// produces.
type NotificationKind string

const (
	// KindHostsReleased tells the user which of their hosts were
	// reclaimed after the lease ran out.
	KindHostsReleased NotificationKind = "hosts_released"
	// KindExpirationSoon warns the user about hosts whose lease is
	// about to run out.
	KindExpirationSoon NotificationKind = "expiration_soon"
)

// Notification names a set of hosts something happened to.  One
// notification always becomes at most one outbound message, however
// many hosts it covers; batching is deliberate so a user whose ten
// leases expire together gets one message, not ten.
type Notification struct {
	Kind    NotificationKind
	HostIDs []model.HostID
}

// HostsReleased builds a released notification.
func HostsReleased(ids []model.HostID) Notification {
	return Notification{Kind: KindHostsReleased, HostIDs: ids}
}

// ExpirationSoon builds an expiring-soon notification.
func ExpirationSoon(ids []model.HostID) Notification {
	return Notification{Kind: KindExpirationSoon, HostIDs: ids}
}

// MessageSender is the outbound transport: one plain-text message to
// one delivery handle.  Implementations are selected once at startup
// and never switched at runtime.
type MessageSender interface {
	SendMessage(ctx context.Context, handle, text string) error
}

// DisabledSender is the transport used when the process runs without
// messaging configured; every send fails with ErrSendingDisabled and
// callers log and continue.
type DisabledSender struct{}

func (DisabledSender) SendMessage(ctx context.Context, handle, text string) error {
	return ErrSendingDisabled
}

// Notifier resolves a user to their delivery handle and sends them a
// formatted message describing a host notification.
type Notifier struct {
	store  registry.Store
	sender MessageSender
	now    func() time.Time
}

// NewNotifier constructs a Notifier over the given store and
// transport.
func NewNotifier(store registry.Store, sender MessageSender) *Notifier {
	return &Notifier{store: store, sender: sender, now: time.Now}
}

// Notify formats and sends one message to the user.  An empty host set
// is a no-op.  A user without a linked notification handle yields
// ErrNoNotificationHandle; delivery failures are returned as-is.
// Neither is ever fatal to the caller's own work, freeing a host
// succeeds whether or not the user hears about it.
func (n *Notifier) Notify(ctx context.Context, userID model.UserID, notification Notification) error {
	if len(notification.HostIDs) == 0 {
		return nil
	}
	tx, err := n.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	user, err := tx.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("read user %s: %w", userID, err)
	}
	if user == nil {
		return fmt.Errorf("user %s doesn't exist", userID)
	}
	if user.NotificationHandle == nil {
		return fmt.Errorf("user %s: %w", userID, ErrNoNotificationHandle)
	}
	hosts, err := tx.GetHosts(ctx, notification.HostIDs)
	if err != nil {
		return fmt.Errorf("read hosts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true

	text := n.format(notification.Kind, hosts)
	if err := n.sender.SendMessage(ctx, *user.NotificationHandle, text); err != nil {
		return fmt.Errorf("send message to user %s: %w", userID, err)
	}
	return nil
}

// format renders the single human-readable message for a notification:
// a header line followed by a numbered host list.
func (n *Notifier) format(kind NotificationKind, hosts []model.Host) string {
	var b strings.Builder
	switch kind {
	case KindExpirationSoon:
		b.WriteString("Hosts expiring soon:")
	default:
		b.WriteString("Hosts released:")
	}
	now := n.now()
	for i, h := range hosts {
		fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, h.Hostname, h.IPAddress)
		if kind == KindExpirationSoon && h.LeasedUntil != nil {
			minutes := int(h.LeasedUntil.Sub(now).Minutes())
			fmt.Fprintf(&b, " - %d minutes left", minutes)
		}
	}
	return b.String()
}
