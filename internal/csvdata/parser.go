// Package csvdata parses admin-uploaded allowlist CSV files and writes the
// record export format. The parser is deliberately hand-rolled: campaign
// spreadsheets arrive with inconsistent headers, mixed line endings, and
// loosely quoted fields, and encoding/csv is too strict about all three.
package csvdata

import (
	"fmt"
	"strings"
)

// Row is one parsed allowlist entry.
type Row struct {
	OldIdentifier string
	ContactHandle string
	NewIdentifier string
}

// Record is one entry of the exported record format.
type Record struct {
	OldUsername string
	NewUsername string
	NpubKey     string
}

// Result carries parsed rows plus counts for observability. Partially-empty
// rows are dropped silently rather than failing the upload; the count lets
// the caller log or display how many were skipped.
type Result struct {
	Rows    []Row
	Dropped int
}

// FormatError reports a structurally unusable CSV file (too few lines or
// unrecognizable header).
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string {
	return e.Message
}

// Parse turns raw allowlist CSV text into ordered rows. The header row must
// contain, in any order and case-insensitively, an old-username column, a
// telegram column, and a new-username column. Data rows missing any of the
// three values are dropped and counted, not reported as errors.
func Parse(content string) (*Result, error) {
	lines := splitLines(content)
	if len(lines) < 2 {
		return nil, &FormatError{Message: "CSV file must contain a header row and at least one data row"}
	}

	headers := splitFields(lines[0])
	oldIdx, tgIdx, newIdx := -1, -1, -1
	for i, h := range headers {
		name := strings.ToLower(h)
		switch {
		case strings.Contains(name, "old") && strings.Contains(name, "username"):
			if oldIdx == -1 {
				oldIdx = i
			}
		case strings.Contains(name, "telegram") || strings.Contains(name, "tg"):
			if tgIdx == -1 {
				tgIdx = i
			}
		case strings.Contains(name, "new") && strings.Contains(name, "username"):
			if newIdx == -1 {
				newIdx = i
			}
		}
	}
	if oldIdx == -1 || tgIdx == -1 || newIdx == -1 {
		return nil, &FormatError{
			Message: fmt.Sprintf(
				`CSV must have "old username", "telegram account", and "new username" columns; found header: %s`,
				lines[0]),
		}
	}

	result := &Result{Rows: make([]Row, 0, len(lines)-1)}
	for _, line := range lines[1:] {
		fields := splitFields(line)
		row := Row{
			OldIdentifier: fieldAt(fields, oldIdx),
			ContactHandle: fieldAt(fields, tgIdx),
			NewIdentifier: fieldAt(fields, newIdx),
		}
		if row.OldIdentifier == "" || row.ContactHandle == "" || row.NewIdentifier == "" {
			result.Dropped++
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

// ParseRecords parses the exported record format (old username, new
// username, npub key). The npub column is optional; old and new username
// columns are required.
func ParseRecords(content string) ([]Record, error) {
	lines := splitLines(content)
	if len(lines) < 2 {
		return nil, &FormatError{Message: "CSV file must contain a header row and at least one data row"}
	}

	headers := splitFields(lines[0])
	oldIdx, newIdx, npubIdx := -1, -1, -1
	for i, h := range headers {
		name := strings.ToLower(h)
		switch {
		case strings.Contains(name, "old") && strings.Contains(name, "username"):
			if oldIdx == -1 {
				oldIdx = i
			}
		case strings.Contains(name, "new") && strings.Contains(name, "username"):
			if newIdx == -1 {
				newIdx = i
			}
		case strings.Contains(name, "npub") || (strings.Contains(name, "pub") && strings.Contains(name, "key")):
			if npubIdx == -1 {
				npubIdx = i
			}
		}
	}
	if oldIdx == -1 || newIdx == -1 {
		return nil, &FormatError{
			Message: fmt.Sprintf(`CSV must have "old username" and "new username" columns; found header: %s`, lines[0]),
		}
	}

	records := make([]Record, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := splitFields(line)
		rec := Record{
			OldUsername: fieldAt(fields, oldIdx),
			NewUsername: fieldAt(fields, newIdx),
		}
		if npubIdx != -1 {
			rec.NpubKey = fieldAt(fields, npubIdx)
		}
		if rec.OldUsername == "" && rec.NewUsername == "" {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// splitLines splits on any of \r\n, \n, \r and discards blank lines.
func splitLines(content string) []string {
	raw := strings.FieldsFunc(strings.ReplaceAll(content, "\r\n", "\n"), func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// splitFields splits one CSV line on commas with quote awareness: a double
// quote toggles quoted mode, a doubled "" inside quotes decodes to a literal
// quote, and commas inside quotes do not split. Each field is trimmed and
// has one stray leading/trailing quote stripped.
func splitFields(line string) []string {
	fields := make([]string, 0, 4)
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				current.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, cleanField(current.String()))
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	fields = append(fields, cleanField(current.String()))

	return fields
}

// cleanField trims whitespace and strips one unbalanced leading or trailing
// quote left behind by sloppy spreadsheet exports.
func cleanField(field string) string {
	trimmed := strings.TrimSpace(field)
	trimmed = strings.TrimPrefix(trimmed, `"`)
	trimmed = strings.TrimSuffix(trimmed, `"`)
	return strings.TrimSpace(trimmed)
}

func fieldAt(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}
