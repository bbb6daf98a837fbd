// Package export writes the current project view to files: CSV, SQLite,
// category charts (SVG/PNG) and Markdown project sheets.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies an export file format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
	FormatSVG    Format = "svg"
	FormatPNG    Format = "png"
	FormatMD     Format = "md"
)

// Formats lists the formats in menu order.
var Formats = []Format{FormatCSV, FormatSQLite, FormatSVG, FormatPNG, FormatMD}

// Extension returns the file extension of f, including the dot.
func (f Format) Extension() string {
	if f == FormatSQLite {
		return ".sqlite3"
	}
	return "." + string(f)
}

// Description is a short label for menus.
func (f Format) Description() string {
	switch f {
	case FormatCSV:
		return "CSV (spreadsheet)"
	case FormatSQLite:
		return "SQLite database"
	case FormatSVG:
		return "Category chart (SVG)"
	case FormatPNG:
		return "Category chart (PNG)"
	case FormatMD:
		return "Markdown report"
	}
	return string(f)
}

// ParseFormat parses a format name or file extension.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch s {
	case "csv":
		return FormatCSV, nil
	case "sqlite", "sqlite3", "db":
		return FormatSQLite, nil
	case "svg":
		return FormatSVG, nil
	case "png":
		return FormatPNG, nil
	case "md", "markdown":
		return FormatMD, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// FormatFromPath infers the format from the extension of path.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("cannot infer export format from %q", path)
	}
	return ParseFormat(ext)
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	return nil
}
