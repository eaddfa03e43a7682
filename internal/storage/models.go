package storage

import (
	"time"

	"github.com/uptrace/bun"
)

// Page is an existing wiki page
type Page struct {
	bun.BaseModel `bun:"table:pages,alias:p"`

	PageID    int64     `bun:"page_id,pk,autoincrement"`
	Namespace int       `bun:"namespace,notnull,unique:pages_namespace_title"`
	Title     string    `bun:"title,notnull,unique:pages_namespace_title"`
	Content   string    `bun:"content,notnull"`
	TouchedAt time.Time `bun:"touched_at,nullzero,notnull,default:current_timestamp"`
}

// PageLink is a link from an existing page to a (namespace, title) target
// that may or may not exist
type PageLink struct {
	bun.BaseModel `bun:"table:page_links,alias:pl"`

	LinkID          int64  `bun:"link_id,pk,autoincrement"`
	FromPageID      int64  `bun:"from_page_id,notnull,unique:page_links_from_target"`
	TargetNamespace int    `bun:"target_namespace,notnull,unique:page_links_from_target"`
	TargetTitle     string `bun:"target_title,notnull,unique:page_links_from_target"`
}

// PageProp is a durable key/value attribute of a page
type PageProp struct {
	bun.BaseModel `bun:"table:page_props,alias:pp"`

	PageID int64  `bun:"page_id,notnull,unique:page_props_page_name"`
	Name   string `bun:"name,notnull,unique:page_props_page_name"`
	Value  string `bun:"value,notnull"`
}

// LinkTarget identifies the page a link points at
type LinkTarget struct {
	Namespace int
	Title     string
}

// MissingLinkTarget is a link target with no page, together with the
// number of link rows pointing at it
type MissingLinkTarget struct {
	Namespace     int    `bun:"namespace" json:"namespace"`
	Title         string `bun:"title" json:"title"`
	IncomingLinks int    `bun:"value" json:"incoming_links"`
}
