package web

import (
	"bytes"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplatesParse(t *testing.T) {
	tpls, err := Templates(time.UTC)
	require.NoError(t, err)
	for _, name := range []string{
		"header", "footer", "home", "notfound", "forbidden", "error",
		"profile", "profile_public", "profile_private", "bazaar", "classified", "classified_new", "my_bazaar",
		"requests", "request_new", "groups", "group_detail", "my_group", "group_invite",
		"community", "forum", "inbox", "compose", "calendar", "settings", "erase_confirm",
		"admin_dashboard", "mod_queue", "ad_reports", "my_events", "event_edit", "my_ads", "ad_edit",
	} {
		assert.NotNil(t, tpls.Lookup(name), name)
	}
}

func TestErrorPageRenders(t *testing.T) {
	tpls, err := Templates(time.UTC)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, tpls.ExecuteTemplate(&buf, "notfound", map[string]any{"Title": "Stránka neexistuje", "Theme": "dark"}))
	assert.Contains(t, buf.String(), `data-theme="dark"`)
}

func TestStaticAssets(t *testing.T) {
	for _, name := range []string{"app.css", "app.js"} {
		_, err := fs.Stat(Static(), name)
		assert.NoError(t, err, name)
	}
}

func TestYouTubeID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ?start=10", "dQw4w9WgXcQ"},
		{"https://example.com/x", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, YouTubeID(tt.in), tt.in)
	}
}

func TestLocation(t *testing.T) {
	assert.Equal(t, DefaultTimezone, Location("").String())
	assert.Equal(t, "UTC", Location("Mars/Olympus").String())
}

func TestLocalTime(t *testing.T) {
	funcs := Funcs(Location("Europe/Bratislava"))
	localtime := funcs["localtime"].(func(time.Time) string)
	localdate := funcs["localdate"].(func(time.Time) string)

	summer := time.Date(2030, 7, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "01.07.2030 12:30", localtime(summer))
	assert.Equal(t, "01.07.2030", localdate(summer))
	assert.Empty(t, localtime(time.Time{}))

	stars := funcs["stars"].(func(int) []int)
	assert.Equal(t, []int{1, 2, 3}, stars(3))
}
