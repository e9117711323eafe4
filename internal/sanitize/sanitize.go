// Package sanitize scrubs user-entered text before it leaves the device.
package sanitize

import "strings"

var replacer = strings.NewReplacer("<", "", ">", "", "`", "")

// Input strips angle brackets and backticks and trims surrounding
// whitespace. Basic scrubbing only; the backend validates again.
func Input(value string) string {
	return strings.TrimSpace(replacer.Replace(value))
}
