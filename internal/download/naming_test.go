package download

import (
	"net/url"
	"path/filepath"
	"testing"

	"castkeep/internal/config"
	"castkeep/internal/store"
)

func TestExpand(t *testing.T) {
	vars := map[string]string{"castid": "007", "epid": "0042", "safeeptitle": "Hello_World"}
	tests := []struct {
		pattern string
		want    string
	}{
		{"%(castid)s/%(epid)s", "007/0042"},
		{"{castid}-{safeeptitle}", "007-Hello_World"},
		{"%(CastID)s", "007"},
		{"%(unknown)s/{missing}", "%(unknown)s/{missing}"},
		{"plain", "plain"},
	}
	for _, tc := range tests {
		if got := Expand(tc.pattern, vars); got != tc.want {
			t.Errorf("Expand(%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}

func TestDestination(t *testing.T) {
	sub := store.Subscription{ID: 3, Title: "Café Talk / Weekly"}
	ep := store.Episode{Seq: 12, Title: "Episode: One"}
	settings := config.Settings{Defaults: config.Defaults{
		DownloadDir:   "/library",
		NamingPattern: "%(safecasttitle)s/%(castid)s-%(epid)s-%(safefilename)s",
		RenameTypes:   "audio/mpeg:.mp3,audio/mp4:.m4a",
	}}

	got := Destination(settings, sub, ep, "show 12", "audio/mpeg")
	want := filepath.Join("/library", "Cafe_Talk_Weekly", "003-0012-show_12.mp3")
	if got != want {
		t.Fatalf("Destination = %q, want %q", got, want)
	}

	// The suffix is not doubled.
	if got := Destination(settings, sub, ep, "show.mp3", "audio/mpeg"); filepath.Ext(got) != ".mp3" || filepath.Base(got) != "003-0012-show.mp3" {
		t.Fatalf("unexpected name with existing suffix: %q", got)
	}

	// Types without a rename entry keep the name as is.
	if got := Destination(settings, sub, ep, "show.ogg", "audio/ogg"); filepath.Base(got) != "003-0012-show.ogg" {
		t.Fatalf("unexpected name for unmapped type: %q", got)
	}
}

func TestFirstMediaType(t *testing.T) {
	tests := map[string]string{
		"audio/mpeg; charset=binary\n": "audio/mpeg",
		"  audio/mp4\nsecond line":     "audio/mp4",
		"":                             "",
		"\n":                           "",
		"Audio/MPEG":                   "audio/mpeg",
	}
	for in, want := range tests {
		if got := firstMediaType(in); got != want {
			t.Errorf("firstMediaType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRemoteFilename(t *testing.T) {
	u, _ := url.Parse("http://cdn.example.com/path/My%20Show.mp3?token=1")
	if got := remoteFilename(u, "http://example.com/x"); got != "My Show.mp3" {
		t.Fatalf("remoteFilename = %q", got)
	}
	root, _ := url.Parse("http://cdn.example.com/")
	if got := remoteFilename(root, "http://example.com/x"); len(got) != 32 {
		t.Fatalf("expected md5 fallback, got %q", got)
	}
}

func TestEpisodeEnv(t *testing.T) {
	sub := store.Subscription{ID: 5, Title: "Cast", SourceURL: "http://example.com/feed"}
	ep := store.Episode{Seq: 9, Title: "Ep Nine", EnclosureURL: "http://example.com/9.mp3"}
	env := episodeEnv(sub, ep, "/tmp/file")
	want := []string{
		"CASTID=5", "CASTTITLE=Cast", "EPFILENAME=/tmp/file", "EPID=9", "EPTITLE=Ep Nine",
		"EPURL=http://example.com/9.mp3", "FEEDURL=http://example.com/feed", "SAFECASTTITLE=Cast", "SAFEEPTITLE=Ep_Nine",
	}
	if len(env) != len(want) {
		t.Fatalf("env = %v", env)
	}
	for i := range want {
		if env[i] != want[i] {
			t.Fatalf("env[%d] = %q, want %q", i, env[i], want[i])
		}
	}
}
