package textutil_test

import (
	"testing"

	"castkeep/internal/textutil"
)

func TestSanitizeBasic(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Episode 1", "Episode 1"},
		{"line\none\r\n", "lineone"},
		{"tab\there\x00", "tabhere"},
		{"-rf title", "rf title"},
		{"--double", "-double"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := textutil.SanitizeBasic(tc.in); got != tc.want {
			t.Errorf("SanitizeBasic(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"show.mp3", "show.mp3"},
		{"My Great Show!", "My_Great_Show"},
		{"a  //  b", "a_b"},
		{"__lead-and-trail__", "lead-and-trail"},
		{"Café Olé", "Cafe_Ole"},
		{"日本語", "UNKNOWN"},
		{"", "UNKNOWN"},
		{"keep#$+,-.=@_these", "keep#$+,-.=@_these"},
		{"-flag", "flag"},
	}
	for _, tc := range cases {
		if got := textutil.SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
