// Package username maps every accepted login spelling to the one key used for local storage.
package username

import "strings"

// Local strips an "@domain" suffix or a "DOMAIN\" prefix from raw and keeps the original case.
// If nothing is left after stripping, the trimmed input is returned.
func Local(raw string) string {
	trimmed := strings.TrimSpace(raw)
	name := trimmed
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i] // user@corp.com
	}
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:] // CORP\user
	}
	if name == "" {
		return trimmed
	}
	return name
}

// Normalize returns the canonical storage key for raw: domain parts stripped, lowercased.
func Normalize(raw string) string {
	return strings.ToLower(Local(raw))
}
