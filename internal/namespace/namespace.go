// Package namespace maps wiki namespace names and aliases to their ids.
// Unresolvable input maps to Invalid.
package namespace

import (
	"sort"
	"strconv"
	"strings"
)

// Canonical namespace ids
const (
	Media         = -2
	Special       = -1
	Main          = 0
	Talk          = 1
	User          = 2
	UserTalk      = 3
	Project       = 4
	ProjectTalk   = 5
	File          = 6
	FileTalk      = 7
	MediaWiki     = 8
	MediaWikiTalk = 9
	Template      = 10
	TemplateTalk  = 11
	Help          = 12
	HelpTalk      = 13
	Category      = 14
	CategoryTalk  = 15
)

// Invalid is returned by Index when text does not name a namespace
const Invalid = -1

var canonical = map[int]string{
	Media:         "Media",
	Special:       "Special",
	Main:          "",
	Talk:          "Talk",
	User:          "User",
	UserTalk:      "User_talk",
	Project:       "Project",
	ProjectTalk:   "Project_talk",
	File:          "File",
	FileTalk:      "File_talk",
	MediaWiki:     "MediaWiki",
	MediaWikiTalk: "MediaWiki_talk",
	Template:      "Template",
	TemplateTalk:  "Template_talk",
	Help:          "Help",
	HelpTalk:      "Help_talk",
	Category:      "Category",
	CategoryTalk:  "Category_talk",
}

var aliases = map[string]int{
	"main":       Main,
	"(main)":     Main,
	"image":      File,
	"image_talk": FileTalk,
}

// Resolver maps namespace names to ids and back
type Resolver struct {
	byName map[string]int
	names  map[int]string
}

// NewResolver builds a resolver from the canonical table plus extra
// namespaces or aliases. An extra entry whose id is not yet named becomes
// that id's display name.
func NewResolver(extra map[string]int) *Resolver {
	r := &Resolver{
		byName: make(map[string]int, len(canonical)+len(aliases)+len(extra)),
		names:  make(map[int]string, len(canonical)+len(extra)),
	}

	for id, name := range canonical {
		r.names[id] = name
		if name != "" {
			r.byName[key(name)] = id
		}
	}
	for name, id := range aliases {
		r.byName[name] = id
	}

	// Sorted so display names are stable when several aliases share an id
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		k := key(name)
		if k == "" {
			continue
		}
		id := extra[name]
		r.byName[k] = id
		if _, exists := r.names[id]; !exists {
			r.names[id] = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
		}
	}

	return r
}

// Resolve looks up a namespace by name. Numeric strings are not names.
func (r *Resolver) Resolve(text string) (int, bool) {
	k := key(text)
	if k == "" {
		return 0, false
	}
	id, ok := r.byName[k]
	return id, ok
}

// Index resolves a tag argument to a namespace id. A known name wins,
// then an integer literal ("0" is the main namespace). Anything else,
// including empty input, is Invalid. Negative literals come back as-is
// and callers treat every negative id as invalid.
func (r *Resolver) Index(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return Invalid
	}
	if id, ok := r.Resolve(text); ok {
		return id
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n
	}
	return Invalid
}

// Name returns the display name of a namespace in db-key form.
// The main namespace has an empty name.
func (r *Resolver) Name(id int) (string, bool) {
	name, ok := r.names[id]
	return name, ok
}

func key(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}
