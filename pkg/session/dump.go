package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/inspectd/pkg/exchange"
)

// Format is a dump file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Extensions lists the recognised dump extensions in resolution order.
var Extensions = []string{".json", ".yaml", ".yml"}

// FormatOf returns the dump format implied by path's extension. Anything that
// is not .yaml or .yml is treated as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeDump parses a dump into exchanges. The result has one element per
// array entry; null entries and entries that do not form a valid exchange
// are nil. Only a dump that is not an array at all is an error.
func DecodeDump(data []byte, format Format, log *slog.Logger) ([]*exchange.Exchange, error) {
	entries, err := splitEntries(data, format)
	if err != nil {
		return nil, err
	}

	out := make([]*exchange.Exchange, len(entries))
	for i, raw := range entries {
		if isNull(raw) {
			continue
		}
		var doc exchange.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			log.Warn("skipping malformed session entry", "index", i, "error", err)
			continue
		}
		e, err := exchange.FromDocument(doc)
		if err != nil {
			log.Warn("skipping malformed session entry", "index", i, "error", err)
			continue
		}
		out[i] = e
	}
	return out, nil
}

func splitEntries(data []byte, format Format) ([]json.RawMessage, error) {
	if format == FormatYAML {
		var items []any
		if err := yaml.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDump, err)
		}
		entries := make([]json.RawMessage, len(items))
		for i, item := range items {
			b, err := json.Marshal(item)
			if err != nil {
				// left nil; treated as malformed
				continue
			}
			entries[i] = b
		}
		return entries, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDump, err)
	}
	return entries, nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// EncodeDump renders exchanges as a dump in the given format.
func EncodeDump(exchanges []*exchange.Exchange, format Format) ([]byte, error) {
	docs := make([]exchange.Document, 0, len(exchanges))
	for _, e := range exchanges {
		if e != nil {
			docs = append(docs, e.Document())
		}
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, err
	}
	if format != FormatYAML {
		return data, nil
	}

	// YAML goes through the JSON form so both encodings share field names.
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

// WriteDump writes exchanges to path using atomic rename. The format follows
// the file extension. Parent directories are created as needed.
func WriteDump(path string, exchanges []*exchange.Exchange) error {
	data, err := EncodeDump(exchanges, FormatOf(path))
	if err != nil {
		return fmt.Errorf("failed to encode session dump: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
