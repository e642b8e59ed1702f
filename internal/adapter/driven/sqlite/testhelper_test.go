package sqlite

import (
	"fmt"
	"net/url"
	"testing"
)

// setupTestDB opens a shared in-memory database unique to the test, runs the
// migrations, and tears everything down with the test. cache=shared lets the
// writer and reader pools see the same data; the name comes from t.Name() so
// parallel tests never collide.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// In-memory databases have no WAL, so the journal_mode pragma is left
	// out. The test name is escaped so it cannot leak into the DSN query.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		url.PathEscape(t.Name()),
	)

	writer, err := openPool(dsn, writerConns)
	if err != nil {
		t.Fatalf("open test writer: %v", err)
	}
	reader, err := openPool(dsn, readerConns)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("open test reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}
	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}
