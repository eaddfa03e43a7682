package storage

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// setupTestStorage opens a private in-memory sqlite database
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	store, err := NewStorage(context.Background(), DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func mustPage(t *testing.T, s *Storage, ns int, title string) int64 {
	t.Helper()
	id, err := s.UpsertPage(context.Background(), ns, title, "")
	if err != nil {
		t.Fatalf("UpsertPage(%d, %q) error: %v", ns, title, err)
	}
	return id
}

func mustLink(t *testing.T, s *Storage, from int64, ns int, title string) {
	t.Helper()
	if err := s.AddLink(context.Background(), from, ns, title); err != nil {
		t.Fatalf("AddLink(%d, %d, %q) error: %v", from, ns, title, err)
	}
}

func TestNewStorageRejectsUnknownDriver(t *testing.T) {
	if _, err := NewStorage(context.Background(), "oracle", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestUpsertPage(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	first, err := s.UpsertPage(ctx, 0, "Foo", "one")
	if err != nil {
		t.Fatalf("UpsertPage() error: %v", err)
	}
	second, err := s.UpsertPage(ctx, 0, "Foo", "two")
	if err != nil {
		t.Fatalf("UpsertPage() second error: %v", err)
	}
	if first != second {
		t.Errorf("upsert changed page id: %d -> %d", first, second)
	}

	page, err := s.GetPageByID(ctx, first)
	if err != nil || page == nil {
		t.Fatalf("GetPageByID() = %v, %v", page, err)
	}
	if page.Content != "two" {
		t.Errorf("Content = %q, want %q", page.Content, "two")
	}

	other, err := s.UpsertPage(ctx, 1, "Foo", "")
	if err != nil {
		t.Fatalf("UpsertPage() talk error: %v", err)
	}
	if other == first {
		t.Error("same title in another namespace must be a different page")
	}
}

func TestGetPageMissing(t *testing.T) {
	s := setupTestStorage(t)

	page, err := s.GetPage(context.Background(), 0, "Nope")
	if err != nil {
		t.Fatalf("GetPage() error: %v", err)
	}
	if page != nil {
		t.Errorf("GetPage() = %+v, want nil", page)
	}
}

func TestWantedTargets(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	a := mustPage(t, s, 0, "A")
	b := mustPage(t, s, 0, "B")
	c := mustPage(t, s, 0, "C")

	mustLink(t, s, a, 0, "Foo")
	mustLink(t, s, b, 0, "Foo")
	mustLink(t, s, c, 0, "Foo")
	mustLink(t, s, a, 0, "Bar")
	mustLink(t, s, a, 0, "B")   // exists
	mustLink(t, s, a, 1, "Foo") // other namespace
	mustLink(t, s, a, 0, "Foo") // duplicate is ignored

	rows, err := s.WantedTargets(ctx, 0)
	if err != nil {
		t.Fatalf("WantedTargets() error: %v", err)
	}

	want := []MissingLinkTarget{
		{Namespace: 0, Title: "Bar", IncomingLinks: 1},
		{Namespace: 0, Title: "Foo", IncomingLinks: 3},
	}
	if len(rows) != len(want) {
		t.Fatalf("WantedTargets() = %+v, want %+v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}

	// Creating Foo removes it from the result
	mustPage(t, s, 0, "Foo")
	rows, err = s.WantedTargets(ctx, 0)
	if err != nil {
		t.Fatalf("WantedTargets() error: %v", err)
	}
	if len(rows) != 1 || rows[0].Title != "Bar" || rows[0].IncomingLinks != 1 {
		t.Errorf("WantedTargets() after create = %+v", rows)
	}

	talk, err := s.WantedTargets(ctx, 1)
	if err != nil {
		t.Fatalf("WantedTargets(1) error: %v", err)
	}
	if len(talk) != 1 || talk[0].Namespace != 1 {
		t.Errorf("WantedTargets(1) = %+v", talk)
	}
}

func TestWantedTargetsIgnoresDeletedSources(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	a := mustPage(t, s, 0, "A")
	mustLink(t, s, a, 0, "Ghost")
	// No page 999; foreign keys are off for in-memory test databases
	mustLink(t, s, 999, 0, "Orphan")

	if err := s.DeletePage(ctx, a); err != nil {
		t.Fatalf("DeletePage() error: %v", err)
	}

	rows, err := s.WantedTargets(ctx, 0)
	if err != nil {
		t.Fatalf("WantedTargets() error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("WantedTargets() = %+v, want none", rows)
	}
}

func TestReplaceLinks(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	a := mustPage(t, s, 0, "A")
	mustLink(t, s, a, 0, "Old")

	err := s.ReplaceLinks(ctx, a, []LinkTarget{
		{Namespace: 0, Title: "New"},
		{Namespace: 0, Title: "New"},
		{Namespace: 14, Title: "Things"},
	})
	if err != nil {
		t.Fatalf("ReplaceLinks() error: %v", err)
	}

	main, err := s.WantedTargets(ctx, 0)
	if err != nil {
		t.Fatalf("WantedTargets() error: %v", err)
	}
	if len(main) != 1 || main[0].Title != "New" || main[0].IncomingLinks != 1 {
		t.Errorf("WantedTargets(0) = %+v", main)
	}

	if err := s.ReplaceLinks(ctx, a, nil); err != nil {
		t.Fatalf("ReplaceLinks(nil) error: %v", err)
	}
	cat, err := s.WantedTargets(ctx, 14)
	if err != nil {
		t.Fatalf("WantedTargets(14) error: %v", err)
	}
	if len(cat) != 0 {
		t.Errorf("WantedTargets(14) = %+v, want none", cat)
	}
}

func TestProperties(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	a := mustPage(t, s, 0, "A")

	if _, ok, err := s.GetProperty(ctx, a, "count_wanted_0"); err != nil || ok {
		t.Fatalf("GetProperty() on empty page = %v, %v", ok, err)
	}

	if err := s.SetProperty(ctx, a, "count_wanted_0", "2"); err != nil {
		t.Fatalf("SetProperty() error: %v", err)
	}
	if err := s.SetProperty(ctx, a, "count_wanted_0", "3"); err != nil {
		t.Fatalf("SetProperty() overwrite error: %v", err)
	}

	value, ok, err := s.GetProperty(ctx, a, "count_wanted_0")
	if err != nil || !ok || value != "3" {
		t.Errorf("GetProperty() = %q, %v, %v", value, ok, err)
	}

	err = s.ReplaceProperties(ctx, a, map[string]string{
		"count_wanted_1":  "5",
		"count_wanted_14": "0",
	})
	if err != nil {
		t.Fatalf("ReplaceProperties() error: %v", err)
	}

	props, err := s.ListProperties(ctx, a)
	if err != nil {
		t.Fatalf("ListProperties() error: %v", err)
	}
	if len(props) != 2 || props["count_wanted_1"] != "5" || props["count_wanted_14"] != "0" {
		t.Errorf("ListProperties() = %v", props)
	}
	if _, ok := props["count_wanted_0"]; ok {
		t.Error("ReplaceProperties() kept a stale property")
	}
}
