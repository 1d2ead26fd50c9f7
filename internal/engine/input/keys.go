package input

import "strings"

// KeyName normalizes an SDL key name to the form control shortcuts use:
// lowercase, with "space" for the space bar.
func KeyName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	return strings.ReplaceAll(name, " ", "")
}
