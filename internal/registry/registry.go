// Package registry provides data access to the host, user and group
// tables.  All reads and writes go through an explicit transaction so
// that the lease logic can rely on the store's isolation; services
// begin a transaction, run one logical operation and commit or roll
// back.  The Store and Tx interfaces describe that boundary, Registry
// is the MySQL implementation.
package registry

import (
	"context"
	"database/sql"
	"time"

	"github.com/udv-group/stand-control-bot/internal/model"
)

// Store opens transactions against the resource store.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single transaction over the resource store.  Every method
// runs inside the transaction; none of them commit implicitly.  The
// caller must finish with exactly one Commit or Rollback.
type Tx interface {
	Commit() error
	Rollback() error

	// Host reads.  Listings are ordered by ip_address ascending so
	// results are deterministic; leased listings are ordered by
	// leased_until first.
	GetAllHosts(ctx context.Context) ([]model.Host, error)
	GetAvailableHosts(ctx context.Context) ([]model.Host, error)
	GetAvailableGroupHosts(ctx context.Context, groupID model.GroupID) ([]model.Host, error)
	GetFirstAvailableGroupHost(ctx context.Context, groupID model.GroupID) (*model.Host, error)
	GetHosts(ctx context.Context, ids []model.HostID) ([]model.Host, error)
	GetLeasedHost(ctx context.Context, id model.HostID) (*model.LeasedHost, error)
	GetLeasedHosts(ctx context.Context, userID model.UserID) ([]model.LeasedHost, error)
	GetLeasedUntilHosts(ctx context.Context, until time.Time) ([]model.LeasedHost, error)

	// Host writes.  LeaseHosts only touches rows that are still free
	// and reports how many rows it changed; a shortfall means another
	// transaction grabbed one of the hosts first.
	LeaseHosts(ctx context.Context, userID model.UserID, ids []model.HostID, until time.Time) (int64, error)
	FreeHostsForUser(ctx context.Context, ids []model.HostID, userID model.UserID) error
	FreeHosts(ctx context.Context, ids []model.HostID) error
	FreeAllHosts(ctx context.Context, userID model.UserID) error

	// Users.
	GetUserByID(ctx context.Context, id model.UserID) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByLink(ctx context.Context, link string) (*model.User, error)
	SetUserNotificationHandle(ctx context.Context, id model.UserID, handle string) error
	AddUser(ctx context.Context, login string, handle *string, email string) (model.UserID, error)

	// Groups and quota overrides.
	GetGroups(ctx context.Context) ([]model.Group, error)
	GetAdGroupLeaseLimits(ctx context.Context, groupNames []string) ([]model.AdGroupLeaseLimit, error)
}

// Registry implements Store on top of a *sql.DB.
type Registry struct {
	db *sql.DB
}

// New returns a Registry bound to the provided database handle.
func New(db *sql.DB) *Registry { return &Registry{db: db} }

// Begin opens a new transaction.
func (r *Registry) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}
