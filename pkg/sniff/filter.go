package sniff

import "strings"

// Filter selects which detections are reported. Both substrings are matched
// case-insensitively and AND-combined; the zero value accepts everything.
type Filter struct {
	Name    string
	Address string
}

// Accepts reports whether a detection with the given resolved name and
// address passes the filter. An absent name matches as the empty string.
func (f Filter) Accepts(name, address string) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Address != "" && !strings.Contains(strings.ToLower(address), strings.ToLower(f.Address)) {
		return false
	}
	return true
}
