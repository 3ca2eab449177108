// Package genres normalises music genre labels and their comma separated storage form.
package genres

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const Folklor = "Folklór"

var Choices = []string{
	"Rock", "Pop", "Jazz", "Blues", "Metal", "Folk", "Country", "Hip-hop", "EDM", "Klasika",
	"Funk", "Soul", "R&B", "Reggae", "World", "Alternative", "Indie", "Punk", "House", "Techno",
	Folklor,
}

var folklorSynonyms = map[string]bool{
	"folklor": true, "folklór": true, "ludove": true, "ľudové": true,
	"svadobne": true, "svadobné": true, "svadobne ludovky": true, "svadobné ľudovky": true,
	"cimbalovka": true, "dychovka": true,
}

var title = cases.Title(language.Slovak)

// Normalize maps folk synonyms to Folklór and title-cases everything else.
func Normalize(label string) string {
	s := strings.TrimSpace(label)
	if s == "" {
		return ""
	}
	if folklorSynonyms[strings.ToLower(s)] {
		return Folklor
	}
	return title.String(s)
}

// Join normalises, dedupes and joins labels with commas.
func Join(labels []string) string {
	seen := make(map[string]bool, len(labels))
	var out []string
	for _, l := range labels {
		n := Normalize(l)
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return strings.Join(out, ",")
}

func Split(v string) []string {
	var out []string
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
