// Package title normalizes page titles into their display and database
// forms.
package title

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/alvmarrod/wiki-wanted/internal/namespace"
)

var (
	// ErrEmpty is returned when nothing is left after normalization
	ErrEmpty = errors.New("title: empty title")
	// ErrInvalid is returned for titles carrying characters wikis reject
	ErrInvalid = errors.New("title: invalid characters")
)

const illegalChars = "[]{}|<>"

// Title is a normalized page title
type Title struct {
	Namespace int
	DBKey     string // underscores, no namespace prefix
	prefix    string
}

// Text returns the title without namespace prefix, spaces for underscores
func (t Title) Text() string {
	return strings.ReplaceAll(t.DBKey, "_", " ")
}

// PrefixedDBKey returns "Talk:Foo_bar" style keys
func (t Title) PrefixedDBKey() string {
	if t.prefix == "" {
		return t.DBKey
	}
	return t.prefix + ":" + t.DBKey
}

// Prefixed returns "Talk:Foo bar" style text
func (t Title) Prefixed() string {
	return strings.ReplaceAll(t.PrefixedDBKey(), "_", " ")
}

func (t Title) String() string {
	return t.Prefixed()
}

// Parser turns free text into titles using a namespace resolver
type Parser struct {
	namespaces *namespace.Resolver
}

// NewParser creates a title parser
func NewParser(namespaces *namespace.Resolver) *Parser {
	return &Parser{namespaces: namespaces}
}

// Namespaces exposes the resolver the parser splits prefixes with
func (p *Parser) Namespaces() *namespace.Resolver {
	return p.namespaces
}

// Parse normalizes text into a Title. A leading known namespace name
// followed by ':' selects that namespace; a fragment is dropped.
func (p *Parser) Parse(text string) (Title, error) {
	text = clean(text)
	text = strings.TrimPrefix(text, ":")

	if idx := strings.Index(text, "#"); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}

	ns := namespace.Main
	if idx := strings.Index(text, ":"); idx > 0 {
		if id, ok := p.namespaces.Resolve(text[:idx]); ok {
			ns = id
			text = strings.TrimSpace(text[idx+1:])
		}
	}

	if text == "" {
		return Title{}, ErrEmpty
	}
	if strings.ContainsAny(text, illegalChars) {
		return Title{}, ErrInvalid
	}

	return p.MakeTitle(ns, text), nil
}

// MakeTitle builds a Title from a namespace id and an unprefixed title
// already split by the caller, e.g. a database row.
func (p *Parser) MakeTitle(ns int, dbKey string) Title {
	dbKey = strings.ReplaceAll(clean(dbKey), " ", "_")
	prefix, _ := p.namespaces.Name(ns)
	return Title{
		Namespace: ns,
		DBKey:     upperFirst(dbKey),
		prefix:    prefix,
	}
}

// clean applies NFC, maps underscores to spaces and collapses whitespace
func clean(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "_", " ")
	return strings.Join(strings.Fields(text), " ")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
