// Package propsdump serializes every stored property of a page.
package propsdump

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Action is the page action name served by Handler
const Action = "propsdump"

// Supported encodings
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// PropertyLister lists a page's properties
type PropertyLister interface {
	ListProperties(ctx context.Context, pageID int64) (map[string]string, error)
}

// Dump returns the properties of pageID as a flat map. A page without
// properties yields an empty, non-nil map.
func Dump(ctx context.Context, store PropertyLister, pageID int64) (map[string]string, error) {
	props, err := store.ListProperties(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("list properties of page %d: %w", pageID, err)
	}
	if props == nil {
		props = map[string]string{}
	}
	return props, nil
}

// Write encodes props to w in the given format
func Write(w io.Writer, props map[string]string, format string) error {
	switch format {
	case "", FormatJSON:
		return json.NewEncoder(w).Encode(props)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(props)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// Handler writes the JSON dump of pageID and nothing else
func Handler(store PropertyLister, pageID int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		props, err := Dump(r.Context(), store, pageID)
		if err != nil {
			logrus.Errorf("Props dump failed: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := Write(w, props, FormatJSON); err != nil {
			logrus.Warnf("Failed to write props of page %d: %v", pageID, err)
		}
	})
}
