// Package identity resolves panel session cookies into users through the
// panel's MySQL database.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/pulivilizator/billmgr-addon/internal/config"
	"github.com/pulivilizator/billmgr-addon/model"
)

// fullAccess is the access mask granting every operation on a function.
const fullAccess = 7

const sessionQuery = `
	SELECT core_session.id,
	       user.id,
	       user.name,
	       COALESCE(user.realname, ''),
	       user.level,
	       COALESCE(ip_ranges.ext_value, ''),
	       totp_status.core_session IS NOT NULL,
	       COALESCE(totp_status.ext_value, '')
	FROM core_session
	JOIN user
	    ON user.id = CAST(core_session.name AS SIGNED INTEGER)
	LEFT OUTER JOIN core_session_ext AS ip_ranges
	    ON ip_ranges.core_session = core_session.id
	    AND ip_ranges.ext_name = 'allowed_ip_ranges'
	LEFT OUTER JOIN core_session_ext AS totp_status
	    ON totp_status.core_session = core_session.id
	    AND totp_status.ext_name = 'totp_status'
	WHERE core_session.id = ?
	    AND user.enabled = 'on'`

const superQuery = `
	SELECT COALESCE(super, '')
	FROM core_users
	WHERE name = CAST(? AS CHAR)`

const rolesQuery = `
	SELECT cf.name, cf.access
	FROM core_users u
	JOIN core_funcs cf
	    ON cf.users = u.id
	WHERE u.name = CAST(? AS CHAR)
	UNION ALL
	SELECT cf.name, cf.access
	FROM core_users u
	JOIN core_members m
	    ON m.user_id = u.id
	JOIN core_users g
	    ON g.id = m.group_id
	JOIN core_funcs cf
	    ON cf.users = g.id
	WHERE u.name = CAST(? AS CHAR)`

// SQLStore looks sessions up in the panel database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store over db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Open connects to the panel database described by cfg.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Name
	mc.ParseTime = true

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("identity: open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// session is one row of the session query.
type session struct {
	id         string
	userID     int64
	name       string
	realName   string
	level      int
	ipRanges   string
	hasTOTP    bool
	totpStatus string
}

// LookupIdentity resolves token for a caller at remoteAddr. It yields nil for
// an unknown session, a disabled user, an address outside the session's
// allowed ranges, or an unfinished second factor.
func (s *SQLStore) LookupIdentity(ctx context.Context, token, remoteAddr string) (*model.Identity, error) {
	if token == "" {
		return nil, nil
	}

	var ses session
	err := s.db.QueryRowContext(ctx, sessionQuery, token).Scan(
		&ses.id, &ses.userID, &ses.name, &ses.realName, &ses.level,
		&ses.ipRanges, &ses.hasTOTP, &ses.totpStatus,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("identity: query session: %w", err)
	}

	if ses.ipRanges != "" {
		allowed, err := addrAllowed(remoteAddr, ses.ipRanges)
		if err != nil {
			return nil, fmt.Errorf("identity: session %s: %w", ses.id, err)
		}
		if !allowed {
			return nil, nil
		}
	}
	if ses.hasTOTP && ses.totpStatus != "on" {
		return nil, nil
	}

	id := &model.Identity{
		ID:        ses.userID,
		Name:      ses.name,
		RealName:  ses.realName,
		SessionID: ses.id,
		AuthLevel: ses.level,
	}
	if err := s.loadRoles(ctx, id); err != nil {
		return nil, err
	}
	return id, nil
}

// loadRoles fills the functions the user, directly or through a group, holds
// with full access.
func (s *SQLStore) loadRoles(ctx context.Context, id *model.Identity) error {
	var super string
	err := s.db.QueryRowContext(ctx, superQuery, id.ID).Scan(&super)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("identity: query user: %w", err)
	}
	if super == "on" {
		id.Super = true
		return nil
	}

	rows, err := s.db.QueryContext(ctx, rolesQuery, id.ID, id.ID)
	if err != nil {
		return fmt.Errorf("identity: query roles: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var name string
		var access int
		if err := rows.Scan(&name, &access); err != nil {
			return fmt.Errorf("identity: scan role: %w", err)
		}
		if access&fullAccess == fullAccess && !seen[name] {
			seen[name] = true
			id.Roles = append(id.Roles, name)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("identity: iterate roles: %w", err)
	}
	return nil
}

// HealthCheck pings the database.
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
