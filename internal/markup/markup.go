// Package markup expands the wanted-pages tags found in page source and
// extracts the wiki links a page makes.
package markup

import (
	"context"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/alvmarrod/wiki-wanted/internal/wanted"
	"github.com/sirupsen/logrus"
)

// Tag and parser function names
const (
	TagWantedList  = "npceo-wanted-list"
	TagWantedCount = "npceo-wanted-count"
	FuncModel      = "npceomodel"
)

// Submatch groups of tagPattern:
// 1-2 list attrs/inner, 3-4 count attrs/inner, 5 model argument.
var tagPattern = regexp.MustCompile(
	`(?is)<` + TagWantedList + `(\s[^>]*?)?(?:/>|>(.*?)</` + TagWantedList + `\s*>)` +
		`|<` + TagWantedCount + `(\s[^>]*?)?(?:/>|>(.*?)</` + TagWantedCount + `\s*>)` +
		`|\{\{#` + FuncModel + `:(.*?)\}\}`,
)

var attrPattern = regexp.MustCompile(`([\w-]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'/>]+))`)

// Keys understood by the wanted tags
var paramKeys = []string{"namespace", "page", "cache", "suppresserrors"}

var linePatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(paramKeys))
	for _, key := range paramKeys {
		patterns[key] = regexp.MustCompile(`(?mi)^[ \t]*` + key + `[ \t]*=[ \t]*(.*)$`)
	}
	return patterns
}()

// Renderer expands tags through a wanted.Counter
type Renderer struct {
	counter *wanted.Counter
}

// NewRenderer creates a renderer backed by counter
func NewRenderer(counter *wanted.Counter) *Renderer {
	return &Renderer{counter: counter}
}

// Render expands every tag in source, left to right, into a fresh Output
// for pageID. Text outside tags is HTML-escaped, so stored source never
// reaches a reader as markup. A count tag placed after a list tag on the
// same page sees the list's count.
func (r *Renderer) Render(ctx context.Context, pageID int64, source string) (string, *wanted.Output, error) {
	out := wanted.NewOutput(pageID)

	matches := tagPattern.FindAllStringSubmatchIndex(source, -1)
	if len(matches) == 0 {
		return html.EscapeString(source), out, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(html.EscapeString(source[last:m[0]]))
		last = m[1]

		var (
			text string
			err  error
		)
		match := strings.ToLower(source[m[0]:m[1]])
		switch {
		case strings.HasPrefix(match, "<"+TagWantedList):
			text, err = r.counter.RenderWantedList(ctx, out, ParseParams(group(source, m, 1), group(source, m, 2)))
		case strings.HasPrefix(match, "<"+TagWantedCount):
			var count int
			count, err = r.counter.RenderWantedCount(ctx, out, ParseParams(group(source, m, 3), group(source, m, 4)))
			text = strconv.Itoa(count)
		default:
			text = wanted.RenderModelMarker(modelArgument(group(source, m, 5)))
		}
		if err != nil {
			return "", nil, err
		}
		b.WriteString(text)
	}
	b.WriteString(html.EscapeString(source[last:]))

	logrus.WithFields(logrus.Fields{
		"page_id": pageID,
		"tags":    len(matches),
	}).Debug("Expanded page tags")

	return b.String(), out, nil
}

// ParseParams builds tag parameters from the attribute string and the
// inner `key = value` lines of a tag. The first line for a key wins and
// attributes override lines. Boolean keys are true only for "true".
func ParseParams(attrs, inner string) wanted.Params {
	values := make(map[string]string, len(paramKeys))
	for _, key := range paramKeys {
		if m := linePatterns[key].FindStringSubmatch(inner); m != nil {
			values[key] = strings.TrimSpace(m[1])
		}
	}
	for _, m := range attrPattern.FindAllStringSubmatch(attrs, -1) {
		name := strings.ToLower(m[1])
		values[name] = strings.TrimSpace(m[2] + m[3] + m[4])
	}

	return wanted.Params{
		Namespace:      values["namespace"],
		Page:           values["page"],
		Cache:          isTrue(values["cache"]),
		SuppressErrors: isTrue(values["suppresserrors"]),
	}
}

func isTrue(value string) bool {
	return strings.EqualFold(value, "true")
}

// modelArgument keeps the first parser function argument
func modelArgument(arg string) string {
	if i := strings.Index(arg, "|"); i >= 0 {
		return arg[:i]
	}
	return arg
}

func group(source string, m []int, n int) string {
	start, end := m[2*n], m[2*n+1]
	if start < 0 {
		return ""
	}
	return source[start:end]
}
