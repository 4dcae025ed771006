package musixmatch

import "strings"

const footer = "...\n\n******* this lyrics is not for commercial use *******"

var substitutions = strings.NewReplacer(
	"fuck", "heck",
	"shit", "shoot",
	"bitch", "beep",
	" damn", " dang",
	"cocaine", "coca-cola",
)

// Clean lowercases lyrics, replaces offensive words and strips the copyright footer the free
// API appends to every lyrics body.
func Clean(lyrics string) string {
	lyrics = strings.ToLower(lyrics)
	if i := strings.Index(lyrics, footer); i >= 0 {
		lyrics = lyrics[:i]
	}
	return strings.TrimSpace(substitutions.Replace(lyrics))
}
