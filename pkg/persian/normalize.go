// Package persian normalizes Arabic-range characters to their Persian-range
// equivalents so that user-typed text matches catalog data regardless of which
// keyboard produced it.
package persian

import "strings"

var replacer = strings.NewReplacer(
	"ك", "ک",
	"دِ", "د",
	"بِ", "ب",
	"زِ", "ز",
	"ذِ", "ذ",
	"شِ", "ش",
	"سِ", "س",
	"ى", "ی",
	"ي", "ی",
	"١", "۱",
	"٢", "۲",
	"٣", "۳",
	"٤", "۴",
	"٥", "۵",
	"٦", "۶",
	"٧", "۷",
	"٨", "۸",
	"٩", "۹",
	"٠", "۰",
)

// Normalize replaces Arabic yeh/kaf, Arabic-Indic digits, and a handful of
// letter+kasra combinations with their bare Persian forms.
func Normalize(s string) string {
	return replacer.Replace(s)
}
