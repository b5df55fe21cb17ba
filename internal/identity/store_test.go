package identity

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"github.com/pulivilizator/billmgr-addon/internal/config"
	"github.com/pulivilizator/billmgr-addon/model"
)

var sessionColumns = []string{"id", "user_id", "name", "realname", "level", "ip_ranges", "has_totp", "totp_status"}

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db), mock
}

func expectSession(mock sqlmock.Sqlmock, token string, ipRanges string, hasTOTP bool, totp string) {
	mock.ExpectQuery("FROM core_session").
		WithArgs(token).
		WillReturnRows(sqlmock.NewRows(sessionColumns).
			AddRow(token, int64(12), "alice", "Alice Smith", 16, ipRanges, hasTOTP, totp))
}

func checkExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLookupIdentity_regularUser(t *testing.T) {
	store, mock := newMockStore(t)
	expectSession(mock, "ses-1", "", false, "")
	mock.ExpectQuery("FROM core_users").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"super"}).AddRow("off"))
	mock.ExpectQuery("UNION ALL").
		WithArgs(int64(12), int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "access"}).
			AddRow("vds", 7).
			AddRow("vds.edit", 3).
			AddRow("dns", 15).
			AddRow("vds", 7))

	got, err := store.LookupIdentity(context.Background(), "ses-1", "192.0.2.10")
	if err != nil {
		t.Fatalf("LookupIdentity() error = %v", err)
	}
	want := &model.Identity{
		ID:        12,
		Name:      "alice",
		RealName:  "Alice Smith",
		SessionID: "ses-1",
		AuthLevel: 16,
		Roles:     []string{"vds", "dns"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LookupIdentity() mismatch (-want +got):\n%s", diff)
	}
	checkExpectations(t, mock)
}

func TestLookupIdentity_superUser(t *testing.T) {
	store, mock := newMockStore(t)
	expectSession(mock, "ses-2", "", false, "")
	mock.ExpectQuery("FROM core_users").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"super"}).AddRow("on"))

	got, err := store.LookupIdentity(context.Background(), "ses-2", "")
	if err != nil {
		t.Fatalf("LookupIdentity() error = %v", err)
	}
	if !got.Super {
		t.Errorf("Super = false, want true")
	}
	if !got.HasRoles("anything", "at.all") {
		t.Errorf("HasRoles() = false for super user")
	}
	checkExpectations(t, mock)
}

func TestLookupIdentity_noPanelUserRow(t *testing.T) {
	store, mock := newMockStore(t)
	expectSession(mock, "ses-3", "", false, "")
	mock.ExpectQuery("FROM core_users").
		WithArgs(int64(12)).
		WillReturnError(sql.ErrNoRows)

	got, err := store.LookupIdentity(context.Background(), "ses-3", "")
	if err != nil {
		t.Fatalf("LookupIdentity() error = %v", err)
	}
	if got == nil || len(got.Roles) != 0 || got.Super {
		t.Errorf("LookupIdentity() = %+v, want identity without roles", got)
	}
	checkExpectations(t, mock)
}

func TestLookupIdentity_rejected(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		ipRanges   string
		hasTOTP    bool
		totp       string
	}{
		{name: "address outside ranges", remoteAddr: "198.51.100.7:5000", ipRanges: "192.0.2.0/24 10.0.0.1-10.0.0.9"},
		{name: "unparseable address", remoteAddr: "not-an-ip", ipRanges: "192.0.2.0/24"},
		{name: "second factor pending", remoteAddr: "192.0.2.1", hasTOTP: true, totp: "wait"},
		{name: "second factor empty", remoteAddr: "192.0.2.1", hasTOTP: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			expectSession(mock, "ses", tt.ipRanges, tt.hasTOTP, tt.totp)

			got, err := store.LookupIdentity(context.Background(), "ses", tt.remoteAddr)
			if err != nil {
				t.Fatalf("LookupIdentity() error = %v", err)
			}
			if got != nil {
				t.Errorf("LookupIdentity() = %+v, want nil", got)
			}
			checkExpectations(t, mock)
		})
	}
}

func TestLookupIdentity_admittedWithChecks(t *testing.T) {
	store, mock := newMockStore(t)
	expectSession(mock, "ses", "10.0.0.1-10.0.0.9 192.0.2.0/24", true, "on")
	mock.ExpectQuery("FROM core_users").
		WillReturnRows(sqlmock.NewRows([]string{"super"}).AddRow("on"))

	got, err := store.LookupIdentity(context.Background(), "ses", "10.0.0.5:40000")
	if err != nil {
		t.Fatalf("LookupIdentity() error = %v", err)
	}
	if got == nil {
		t.Fatal("LookupIdentity() = nil, want identity")
	}
	checkExpectations(t, mock)
}

func TestLookupIdentity_unknownSession(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM core_session").
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows(sessionColumns))

	got, err := store.LookupIdentity(context.Background(), "gone", "")
	if err != nil {
		t.Fatalf("LookupIdentity() error = %v", err)
	}
	if got != nil {
		t.Errorf("LookupIdentity() = %+v, want nil", got)
	}
	checkExpectations(t, mock)
}

func TestLookupIdentity_emptyToken(t *testing.T) {
	store, mock := newMockStore(t)

	got, err := store.LookupIdentity(context.Background(), "", "")
	if err != nil || got != nil {
		t.Errorf("LookupIdentity(\"\") = %v, %v, want nil, nil", got, err)
	}
	checkExpectations(t, mock)
}

func TestLookupIdentity_errors(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("session query", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("FROM core_session").WillReturnError(boom)

		_, err := store.LookupIdentity(context.Background(), "ses", "")
		if !errors.Is(err, boom) {
			t.Errorf("error = %v, want %v", err, boom)
		}
	})

	t.Run("roles query", func(t *testing.T) {
		store, mock := newMockStore(t)
		expectSession(mock, "ses", "", false, "")
		mock.ExpectQuery("FROM core_users").
			WillReturnRows(sqlmock.NewRows([]string{"super"}).AddRow(""))
		mock.ExpectQuery("UNION ALL").WillReturnError(boom)

		_, err := store.LookupIdentity(context.Background(), "ses", "")
		if !errors.Is(err, boom) {
			t.Errorf("error = %v, want %v", err, boom)
		}
	})

	t.Run("malformed range", func(t *testing.T) {
		store, mock := newMockStore(t)
		expectSession(mock, "ses", "10.0.0.1-bogus", false, "")

		_, err := store.LookupIdentity(context.Background(), "ses", "10.0.0.2")
		if err == nil {
			t.Error("LookupIdentity() error = nil, want error")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	if err := NewSQLStore(db).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v", err)
	}
	checkExpectations(t, mock)
}

func TestOpen(t *testing.T) {
	db, err := Open(config.DatabaseConfig{
		Host:         "db.internal",
		Port:         3306,
		User:         "billmgr",
		Password:     "secret",
		Name:         "billmgr",
		MaxOpenConns: 4,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if got := db.Stats().MaxOpenConnections; got != 4 {
		t.Errorf("MaxOpenConnections = %d, want 4", got)
	}
}

func TestAddrAllowed(t *testing.T) {
	tests := []struct {
		addr   string
		ranges string
		want   bool
	}{
		{"192.0.2.5", "192.0.2.5", true},
		{"192.0.2.5:80", "192.0.2.0/24", true},
		{"192.0.2.5", "192.0.2.1-192.0.2.9", true},
		{"192.0.2.10", "192.0.2.1-192.0.2.9", false},
		{"::ffff:192.0.2.5", "192.0.2.0/24", true},
		{"[2001:db8::1]:443", "2001:db8::/32", true},
		{"203.0.113.1", "192.0.2.0/24\n198.51.100.0/24", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr+" in "+tt.ranges, func(t *testing.T) {
			got, err := addrAllowed(tt.addr, tt.ranges)
			if err != nil {
				t.Fatalf("addrAllowed() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("addrAllowed(%q, %q) = %v, want %v", tt.addr, tt.ranges, got, tt.want)
			}
		})
	}
}

func TestAddrAllowed_spacedRange(t *testing.T) {
	// Whitespace separates entries, so a spaced range leaves a bare dash.
	if _, err := addrAllowed("192.0.2.5", "192.0.2.1 - 192.0.2.9"); err == nil {
		t.Error("addrAllowed() error = nil, want error")
	}
}
