package entstore

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// SQLiteMemoryDSN names a shared in-memory database private to one test.
func SQLiteMemoryDSN(name string) string {
	return fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_fk=1", name)
}

// OpenTest opens and migrates an in-memory SQLite store closed at test end.
func OpenTest(t testing.TB) *Store {
	t.Helper()
	ctx := context.Background()
	st, err := Open(ctx, SQLiteMemoryDSN(strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return st
}
