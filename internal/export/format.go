package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sadopc/focustrack/internal/stats"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts "json" or "csv" in any case; empty means JSON.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
	}
}

// ContentType returns the MIME type of a parsed format.
func ContentType(format string) string {
	if format == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Write renders data in format.
func Write(w io.Writer, format string, data *stats.ExportData) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, data)
	case FormatJSON:
		return WriteJSON(w, data)
	default:
		return fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}

// ToFile renders data to path in format.
func ToFile(path, format string, data *stats.ExportData) error {
	switch format {
	case FormatCSV:
		return ToCSV(data, path)
	case FormatJSON:
		return ToJSON(data, path)
	default:
		return fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
}
