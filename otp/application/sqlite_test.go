package application

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"admission-gateway/otp/infra"

	_ "modernc.org/sqlite"
)

func newSQLiteRepository(t *testing.T) *infra.SQLRepository {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := infra.Migrate(context.Background(), db, infra.DialectSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return infra.NewSQLRepository(db, infra.DialectSQLite)
}
