// Package web holds the embedded HTML templates and static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"regexp"
	"time"

	"muzikuj/internal/features"
	"muzikuj/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static is the static asset tree rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// DefaultTimezone is what pages display times in unless told otherwise.
const DefaultTimezone = "Europe/Bratislava"

// Location loads name, falling back to UTC when the zone is unknown.
func Location(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

var youtubeRe = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)

// YouTubeID extracts the video id from a watch, share or embed link.
func YouTubeID(url string) string {
	m := youtubeRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// Funcs are the template helpers. Times are shown in loc.
func Funcs(loc *time.Location) template.FuncMap {
	if loc == nil {
		loc = time.UTC
	}
	format := func(t time.Time, layout string) string {
		if t.IsZero() {
			return ""
		}
		return t.In(loc).Format(layout)
	}
	return template.FuncMap{
		"localtime": func(t time.Time) string { return format(t, "02.01.2006 15:04") },
		"localdate": func(t time.Time) string { return format(t, "02.01.2006") },
		"youtubeID": YouTubeID,
		"hasFeature": func(u *models.User, key string) bool {
			return features.Has(u, key)
		},
		"quota": func(u *models.User, key string, def int) int {
			return features.Quota(u, key, def)
		},
		"userPlan": features.Plan,
		"contains": func(list []string, s string) bool {
			for _, v := range list {
				if v == s {
					return true
				}
			}
			return false
		},
		"add":  func(a, b int) int { return a + b },
		"list": func(v ...string) []string { return v },
		"dict": func(kv ...any) map[string]any {
			m := make(map[string]any, len(kv)/2)
			for i := 0; i+1 < len(kv); i += 2 {
				if k, ok := kv[i].(string); ok {
					m[k] = kv[i+1]
				}
			}
			return m
		},
		"stars": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i + 1
			}
			return out
		},
	}
}

// Templates parses every embedded page with the helpers bound to loc.
func Templates(loc *time.Location) (*template.Template, error) {
	return template.New("").Funcs(Funcs(loc)).ParseFS(templateFS, "templates/*.html")
}
