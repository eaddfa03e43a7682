// Package storage persists pages, their outgoing links and page properties
// in sqlite or postgres through bun.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Storage handles all database operations
type Storage struct {
	db *bun.DB
}

// NewStorage opens/creates the database and initializes the schema
func NewStorage(ctx context.Context, driver, dsn string) (*Storage, error) {
	var dialect schema.Dialect
	switch driver {
	case DriverSQLite:
		dialect = sqlitedialect.New()
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		dialect = pgdialect.New()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := bun.NewDB(sqlDB, dialect)
	if driver == DriverSQLite {
		// sqlite serializes writers; one connection also keeps in-memory databases alive
		db.SetMaxOpenConns(1)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// sqliteDSN applies WAL defaults to file databases without options
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") || strings.Contains(dsn, ":memory:") {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*Page)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create pages: %w", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*PageLink)(nil)).
		IfNotExists().
		ForeignKey(`("from_page_id") REFERENCES "pages" ("page_id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create page_links: %w", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*PageProp)(nil)).
		IfNotExists().
		ForeignKey(`("page_id") REFERENCES "pages" ("page_id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create page_props: %w", err)
	}

	if _, err := s.db.NewCreateIndex().
		Model((*PageLink)(nil)).
		Index("idx_page_links_target").
		Column("target_namespace", "target_title").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create idx_page_links_target: %w", err)
	}

	return nil
}

// DB exposes the underlying bun handle
func (s *Storage) DB() *bun.DB {
	return s.db
}

// UpsertPage inserts a page or replaces the content of an existing one.
// Returns the page_id of the inserted/existing page.
func (s *Storage) UpsertPage(ctx context.Context, ns int, title, content string) (int64, error) {
	page := &Page{
		Namespace: ns,
		Title:     title,
		Content:   content,
		TouchedAt: time.Now().UTC(),
	}

	_, err := s.db.NewInsert().
		Model(page).
		On("CONFLICT (namespace, title) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("touched_at = EXCLUDED.touched_at").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert page: %w", err)
	}

	stored, err := s.GetPage(ctx, ns, title)
	if err != nil {
		return 0, err
	}
	if stored == nil {
		return 0, fmt.Errorf("page %d:%s missing after upsert", ns, title)
	}

	return stored.PageID, nil
}

// GetPage retrieves a page by namespace and title, returns nil if not found
func (s *Storage) GetPage(ctx context.Context, ns int, title string) (*Page, error) {
	var page Page
	err := s.db.NewSelect().
		Model(&page).
		Where("p.namespace = ?", ns).
		Where("p.title = ?", title).
		Limit(1).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	return &page, nil
}

// GetPageByID retrieves a page by id, returns nil if not found
func (s *Storage) GetPageByID(ctx context.Context, pageID int64) (*Page, error) {
	var page Page
	err := s.db.NewSelect().
		Model(&page).
		Where("p.page_id = ?", pageID).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page %d: %w", pageID, err)
	}

	return &page, nil
}

// DeletePage removes a page; its links and properties go with it
func (s *Storage) DeletePage(ctx context.Context, pageID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*PageLink)(nil)).Where("from_page_id = ?", pageID).Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete links of page %d: %w", pageID, err)
		}
		if _, err := tx.NewDelete().Model((*PageProp)(nil)).Where("page_id = ?", pageID).Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete props of page %d: %w", pageID, err)
		}
		if _, err := tx.NewDelete().Model((*Page)(nil)).Where("page_id = ?", pageID).Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete page %d: %w", pageID, err)
		}
		return nil
	})
}

// AddLink records a link, ignoring duplicates
func (s *Storage) AddLink(ctx context.Context, fromID int64, ns int, title string) error {
	link := &PageLink{
		FromPageID:      fromID,
		TargetNamespace: ns,
		TargetTitle:     title,
	}
	_, err := s.db.NewInsert().
		Model(link).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add link: %w", err)
	}
	return nil
}

// ReplaceLinks swaps the outgoing links of a page for the given targets
func (s *Storage) ReplaceLinks(ctx context.Context, fromID int64, targets []LinkTarget) error {
	links := make([]PageLink, 0, len(targets))
	seen := make(map[LinkTarget]bool, len(targets))
	for _, target := range targets {
		if seen[target] {
			continue
		}
		seen[target] = true
		links = append(links, PageLink{
			FromPageID:      fromID,
			TargetNamespace: target.Namespace,
			TargetTitle:     target.Title,
		})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*PageLink)(nil)).
			Where("from_page_id = ?", fromID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear links: %w", err)
		}
		if len(links) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert links: %w", err)
		}
		return nil
	})
}

// WantedTargets returns link targets in a namespace that have no page,
// grouped by target with the number of links from existing pages
func (s *Storage) WantedTargets(ctx context.Context, ns int) ([]MissingLinkTarget, error) {
	var rows []MissingLinkTarget
	err := s.db.NewSelect().
		TableExpr("page_links AS pl").
		ColumnExpr("pl.target_namespace AS namespace").
		ColumnExpr("pl.target_title AS title").
		ColumnExpr("COUNT(*) AS value").
		Join("LEFT JOIN pages AS pg1 ON pg1.namespace = pl.target_namespace AND pg1.title = pl.target_title").
		Join("JOIN pages AS pg2 ON pg2.page_id = pl.from_page_id").
		Where("pg1.page_id IS NULL").
		Where("pl.target_namespace = ?", ns).
		GroupExpr("pl.target_namespace, pl.target_title").
		OrderExpr("pl.target_namespace ASC, pl.target_title ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query wanted pages: %w", err)
	}

	return rows, nil
}

// GetProperty reads one page property
func (s *Storage) GetProperty(ctx context.Context, pageID int64, name string) (string, bool, error) {
	var prop PageProp
	err := s.db.NewSelect().
		Model(&prop).
		Where("pp.page_id = ?", pageID).
		Where("pp.name = ?", name).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get property %s: %w", name, err)
	}

	return prop.Value, true, nil
}

// SetProperty inserts or overwrites one page property
func (s *Storage) SetProperty(ctx context.Context, pageID int64, name, value string) error {
	prop := &PageProp{PageID: pageID, Name: name, Value: value}
	_, err := s.db.NewInsert().
		Model(prop).
		On("CONFLICT (page_id, name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set property %s: %w", name, err)
	}
	return nil
}

// ReplaceProperties swaps every property of a page for the given set,
// as done after a page render
func (s *Storage) ReplaceProperties(ctx context.Context, pageID int64, props map[string]string) error {
	rows := make([]PageProp, 0, len(props))
	for name, value := range props {
		rows = append(rows, PageProp{PageID: pageID, Name: name, Value: value})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*PageProp)(nil)).
			Where("page_id = ?", pageID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear properties: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert properties: %w", err)
		}
		return nil
	})
}

// ListProperties returns every property of a page
func (s *Storage) ListProperties(ctx context.Context, pageID int64) (map[string]string, error) {
	var props []PageProp
	err := s.db.NewSelect().
		Model(&props).
		Where("pp.page_id = ?", pageID).
		OrderExpr("pp.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}

	result := make(map[string]string, len(props))
	for _, prop := range props {
		result[prop.Name] = prop.Value
	}
	return result, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
