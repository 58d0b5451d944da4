package registry

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/udv-group/stand-control-bot/internal/model"
)

// sqlTx wraps one *sql.Tx and implements Tx.  All timestamps are
// stored and compared in UTC; the connection is opened with
// parseTime=true&loc=UTC so DATETIME columns scan into time.Time
// directly.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

const hostColumns = `id, hostname, ip_address, group_id, user_id, leased_until`

// leasedHostColumns selects host fields joined with the owning user.
const leasedHostColumns = `h.id, h.hostname, h.ip_address, h.group_id, h.leased_until,
	u.id, u.login, u.notification_handle, u.email, u.link`

// placeholders returns a comma-separated list of n "?" markers for
// building IN (...) clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// hostIDArgs converts a host id list into query arguments.
func hostIDArgs(ids []model.HostID) []interface{} {
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, int64(id))
	}
	return args
}

func scanHost(scanner interface{ Scan(...interface{}) error }) (model.Host, error) {
	var h model.Host
	var userID sql.NullInt64
	var leasedUntil sql.NullTime
	if err := scanner.Scan(&h.ID, &h.Hostname, &h.IPAddress, &h.GroupID, &userID, &leasedUntil); err != nil {
		return model.Host{}, err
	}
	if userID.Valid {
		uid := model.UserID(userID.Int64)
		h.UserID = &uid
	}
	if leasedUntil.Valid {
		lu := leasedUntil.Time.UTC()
		h.LeasedUntil = &lu
	}
	return h, nil
}

func (t *sqlTx) queryHosts(ctx context.Context, query string, args ...interface{}) ([]model.Host, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	hosts := make([]model.Host, 0)
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hosts, nil
}

func (t *sqlTx) GetAllHosts(ctx context.Context) ([]model.Host, error) {
	return t.queryHosts(ctx,
		`SELECT `+hostColumns+` FROM hosts ORDER BY ip_address ASC`)
}

func (t *sqlTx) GetAvailableHosts(ctx context.Context) ([]model.Host, error) {
	return t.queryHosts(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE user_id IS NULL ORDER BY ip_address ASC`)
}

func (t *sqlTx) GetAvailableGroupHosts(ctx context.Context, groupID model.GroupID) ([]model.Host, error) {
	return t.queryHosts(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE user_id IS NULL AND group_id = ? ORDER BY ip_address ASC`,
		int64(groupID))
}

// GetFirstAvailableGroupHost returns the free host with the lowest
// address in the group, or nil when every host is taken.
func (t *sqlTx) GetFirstAvailableGroupHost(ctx context.Context, groupID model.GroupID) (*model.Host, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE user_id IS NULL AND group_id = ? ORDER BY ip_address ASC LIMIT 1`,
		int64(groupID))
	h, err := scanHost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

func (t *sqlTx) GetHosts(ctx context.Context, ids []model.HostID) ([]model.Host, error) {
	if len(ids) == 0 {
		return []model.Host{}, nil
	}
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY ip_address ASC`
	return t.queryHosts(ctx, query, hostIDArgs(ids)...)
}

func scanLeasedHost(scanner interface{ Scan(...interface{}) error }) (model.LeasedHost, error) {
	var lh model.LeasedHost
	var handle, email sql.NullString
	err := scanner.Scan(
		&lh.ID, &lh.Hostname, &lh.IPAddress, &lh.GroupID, &lh.LeasedUntil,
		&lh.User.ID, &lh.User.Login, &handle, &email, &lh.User.Link,
	)
	if err != nil {
		return model.LeasedHost{}, err
	}
	lh.LeasedUntil = lh.LeasedUntil.UTC()
	if handle.Valid {
		v := handle.String
		lh.User.NotificationHandle = &v
	}
	if email.Valid {
		v := email.String
		lh.User.Email = &v
	}
	return lh, nil
}

func (t *sqlTx) queryLeasedHosts(ctx context.Context, query string, args ...interface{}) ([]model.LeasedHost, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	hosts := make([]model.LeasedHost, 0)
	for rows.Next() {
		lh, err := scanLeasedHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, lh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hosts, nil
}

func (t *sqlTx) GetLeasedHost(ctx context.Context, id model.HostID) (*model.LeasedHost, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+leasedHostColumns+`
		 FROM hosts h JOIN users u ON h.user_id = u.id
		 WHERE h.id = ?`, int64(id))
	lh, err := scanLeasedHost(row)
	if err != nil {
		return nil, err
	}
	return &lh, nil
}

func (t *sqlTx) GetLeasedHosts(ctx context.Context, userID model.UserID) ([]model.LeasedHost, error) {
	return t.queryLeasedHosts(ctx,
		`SELECT `+leasedHostColumns+`
		 FROM hosts h JOIN users u ON h.user_id = u.id
		 WHERE h.user_id = ? ORDER BY h.leased_until, h.ip_address ASC`,
		int64(userID))
}

func (t *sqlTx) GetLeasedUntilHosts(ctx context.Context, until time.Time) ([]model.LeasedHost, error) {
	return t.queryLeasedHosts(ctx,
		`SELECT `+leasedHostColumns+`
		 FROM hosts h JOIN users u ON h.user_id = u.id
		 WHERE h.leased_until < ? ORDER BY h.leased_until, h.ip_address ASC`,
		until.UTC())
}

// LeaseHosts assigns the given hosts to the user until the given
// deadline.  The update is conditional on the rows still being free,
// so the returned affected-row count can be lower than len(ids) when a
// concurrent transaction leased one of them first; callers treat that
// as a conflict and roll back.
func (t *sqlTx) LeaseHosts(ctx context.Context, userID model.UserID, ids []model.HostID, until time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE hosts SET user_id = ?, leased_until = ? WHERE id IN (` + placeholders(len(ids)) + `) AND user_id IS NULL`
	args := append([]interface{}{int64(userID), until.UTC()}, hostIDArgs(ids)...)
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FreeHostsForUser releases only those of the given hosts that are
// currently owned by the user; ids owned by someone else are left
// untouched.
func (t *sqlTx) FreeHostsForUser(ctx context.Context, ids []model.HostID, userID model.UserID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE hosts SET user_id = NULL, leased_until = NULL WHERE id IN (` + placeholders(len(ids)) + `) AND user_id = ?`
	args := append(hostIDArgs(ids), int64(userID))
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *sqlTx) FreeHosts(ctx context.Context, ids []model.HostID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE hosts SET user_id = NULL, leased_until = NULL WHERE id IN (` + placeholders(len(ids)) + `)`
	_, err := t.tx.ExecContext(ctx, query, hostIDArgs(ids)...)
	return err
}

func (t *sqlTx) FreeAllHosts(ctx context.Context, userID model.UserID) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE hosts SET user_id = NULL, leased_until = NULL WHERE user_id = ?`,
		int64(userID))
	return err
}

const userColumns = `id, login, notification_handle, email, link`

func scanUser(scanner interface{ Scan(...interface{}) error }) (*model.User, error) {
	var u model.User
	var handle, email sql.NullString
	if err := scanner.Scan(&u.ID, &u.Login, &handle, &email, &u.Link); err != nil {
		return nil, err
	}
	if handle.Valid {
		v := handle.String
		u.NotificationHandle = &v
	}
	if email.Valid {
		v := email.String
		u.Email = &v
	}
	return &u, nil
}

func (t *sqlTx) getUser(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetUserByID returns the user or nil when no such row exists.
func (t *sqlTx) GetUserByID(ctx context.Context, id model.UserID) (*model.User, error) {
	return t.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, int64(id))
}

func (t *sqlTx) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return t.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE login = ?`, login)
}

func (t *sqlTx) GetUserByLink(ctx context.Context, link string) (*model.User, error) {
	return t.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE link = ?`, link)
}

func (t *sqlTx) SetUserNotificationHandle(ctx context.Context, id model.UserID, handle string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE users SET notification_handle = ? WHERE id = ?`, handle, int64(id))
	return err
}

// AddUser inserts a user row and returns the generated id.  The link
// token defaults in the database.
func (t *sqlTx) AddUser(ctx context.Context, login string, handle *string, email string) (model.UserID, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (login, notification_handle, email) VALUES (?, ?, ?)`,
		login, handle, email)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return model.UserID(id), nil
}

func (t *sqlTx) GetGroups(ctx context.Context) ([]model.Group, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, name FROM groups ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	groups := make([]model.Group, 0)
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func (t *sqlTx) GetAdGroupLeaseLimits(ctx context.Context, groupNames []string) ([]model.AdGroupLeaseLimit, error) {
	if len(groupNames) == 0 {
		return []model.AdGroupLeaseLimit{}, nil
	}
	query := `SELECT group_name, lease_limit FROM lease_limits_by_ad_group WHERE group_name IN (` + placeholders(len(groupNames)) + `)`
	args := make([]interface{}, 0, len(groupNames))
	for _, name := range groupNames {
		args = append(args, name)
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	limits := make([]model.AdGroupLeaseLimit, 0)
	for rows.Next() {
		var l model.AdGroupLeaseLimit
		if err := rows.Scan(&l.GroupName, &l.Limit); err != nil {
			return nil, err
		}
		limits = append(limits, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return limits, nil
}
