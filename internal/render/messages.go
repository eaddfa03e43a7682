package render

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMessages are the English strings of the wanted-pages tags
var DefaultMessages = map[string]string{
	"wpfromns-nons":  "No namespace specified.",
	"wpfromns-nores": "No wanted pages in this namespace.",
	"wpfromns-links": "{{PLURAL:$1|$1 link|$1 links}}",
}

var (
	pluralPattern = regexp.MustCompile(`\{\{PLURAL:([^|}]*)\|([^}]*)\}\}`)
	argPattern    = regexp.MustCompile(`\$(\d+)`)
)

// Catalog resolves message keys to display text
type Catalog struct {
	messages map[string]string
}

// NewCatalog starts from DefaultMessages and applies overrides
func NewCatalog(overrides map[string]string) *Catalog {
	messages := make(map[string]string, len(DefaultMessages)+len(overrides))
	for key, value := range DefaultMessages {
		messages[key] = value
	}
	for key, value := range overrides {
		messages[key] = value
	}
	return &Catalog{messages: messages}
}

// Text returns the message with $1..$n substituted and PLURAL resolved.
// Unknown keys render as ⧼key⧽.
func (c *Catalog) Text(key string, args ...any) string {
	msg, ok := c.messages[key]
	if !ok {
		return "⧼" + key + "⧽"
	}

	msg = substitute(msg, args)
	return pluralPattern.ReplaceAllStringFunc(msg, func(m string) string {
		parts := pluralPattern.FindStringSubmatch(m)
		forms := strings.Split(parts[2], "|")
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || n == 1 || len(forms) == 1 {
			return forms[0]
		}
		return forms[1]
	})
}

// Escaped returns Text escaped for HTML
func (c *Catalog) Escaped(key string, args ...any) string {
	return html.EscapeString(c.Text(key, args...))
}

func substitute(msg string, args []any) string {
	return argPattern.ReplaceAllStringFunc(msg, func(m string) string {
		idx, err := strconv.Atoi(m[1:])
		if err != nil || idx < 1 || idx > len(args) {
			return m
		}
		return fmt.Sprint(args[idx-1])
	})
}
