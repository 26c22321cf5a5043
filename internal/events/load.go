// ABOUTME: Event list loading from files and HTTP
// ABOUTME: Decodes YAML, TOML, or JSON by extension or content type
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// document is the on-disk layout: a top-level "events" list
type document struct {
	Events []Event `json:"events" yaml:"events" toml:"events"`
}

// LoadFile reads an event list from a .yaml, .yml, .toml, or .json file
func LoadFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	list, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return list, nil
}

// Decode parses data in the format named by ext and validates the result
func Decode(data []byte, ext string) ([]Event, error) {
	var doc document
	var err error

	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &doc)
	case "toml":
		err = toml.Unmarshal(data, &doc)
	case "json", "":
		err = decodeJSON(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported events format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(doc.Events); err != nil {
		return nil, err
	}
	return doc.Events, nil
}

// decodeJSON accepts either {"events": [...]} or a bare array
func decodeJSON(data []byte, doc *document) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(data, &doc.Events)
	}
	return json.Unmarshal(data, doc)
}

// Fetch downloads an event list served as JSON
func Fetch(ctx context.Context, client *http.Client, url string) ([]Event, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build events request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("url", url).Msg("fetching events")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("events fetch failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return Decode(data, "json")
}
