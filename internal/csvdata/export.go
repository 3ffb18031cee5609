package csvdata

import "strings"

// exportHeader is the fixed header of the record download format.
const exportHeader = "old username,new username,npub key"

// Export writes records in the download format. Fields are quoted only when
// they contain a comma, quote, or newline, with embedded quotes doubled.
func Export(records []Record) string {
	var b strings.Builder
	b.WriteString(exportHeader)
	for _, rec := range records {
		b.WriteByte('\n')
		b.WriteString(escapeField(rec.OldUsername))
		b.WriteByte(',')
		b.WriteString(escapeField(rec.NewUsername))
		b.WriteByte(',')
		b.WriteString(escapeField(rec.NpubKey))
	}
	return b.String()
}

func escapeField(field string) string {
	if !strings.ContainsAny(field, ",\"\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
