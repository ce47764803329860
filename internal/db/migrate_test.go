package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateCreatesTables(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{"bans", "accounts", "api_keys"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	for _, column := range []string{"user_id", "reason", "created_at"} {
		if !conn.Migrator().HasColumn("bans", column) {
			t.Fatalf("bans missing column %s", column)
		}
	}
	if DialectName(conn) != DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %q", DialectName(conn))
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	for i := 0; i < 2; i++ {
		if errMigrate := Migrate(conn); errMigrate != nil {
			t.Fatalf("migrate run %d: %v", i+1, errMigrate)
		}
	}
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "banlist.db")

	conn, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, _ := conn.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
}

func TestDetectDialectFromDSN(t *testing.T) {
	cases := []struct {
		dsn     string
		dialect string
		wantErr bool
	}{
		{dsn: "postgres://u:p@localhost/db", dialect: DialectPostgres},
		{dsn: "host=localhost user=u dbname=bans sslmode=disable", dialect: DialectPostgres},
		{dsn: "file:data/bans.db", dialect: DialectSQLite},
		{dsn: "sqlite://data/bans.db", dialect: DialectSQLite},
		{dsn: "data/bans.db", dialect: DialectSQLite},
		{dsn: "mysql://u:p@localhost/db", wantErr: true},
	}
	for _, tc := range cases {
		got, err := detectDialectFromDSN(tc.dsn)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("detectDialectFromDSN(%q) expected error", tc.dsn)
			}
			continue
		}
		if err != nil || got != tc.dialect {
			t.Fatalf("detectDialectFromDSN(%q) = %q, %v; want %q", tc.dsn, got, err, tc.dialect)
		}
	}
}

func TestEnsureSQLiteParamsKeepsExisting(t *testing.T) {
	got := ensureSQLiteParams("file:bans.db?_busy_timeout=100")
	if strings.Count(got, "_busy_timeout") != 1 {
		t.Fatalf("expected existing busy timeout preserved, got %q", got)
	}
	if !strings.Contains(got, "_journal_mode=WAL") || !strings.Contains(got, "&_foreign_keys=on") {
		t.Fatalf("expected defaults appended, got %q", got)
	}
}

func TestSQLitePathFromDSN(t *testing.T) {
	cases := map[string]string{
		"file:data/bans.db?_busy_timeout=5000": "data/bans.db",
		"file::memory:":                        "",
		"file:bans?mode=memory&cache=shared":   "",
		":memory:":                             "",
		"data/bans.db":                         "data/bans.db",
	}
	for dsn, want := range cases {
		if got := sqlitePathFromDSN(dsn); got != want {
			t.Fatalf("sqlitePathFromDSN(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestCloseReleasesPool(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "close.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if errClose := Close(conn); errClose != nil {
		t.Fatalf("Close() error = %v", errClose)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	if errPing := sqlDB.Ping(); errPing == nil {
		t.Fatalf("expected ping on closed pool to fail")
	}
	if errClose := Close(nil); errClose != nil {
		t.Fatalf("Close(nil) error = %v", errClose)
	}
}
