// Package textutil sanitizes feed-supplied text before it reaches the
// store or the filesystem.
//
// SanitizeBasic strips control characters from titles. SanitizeFileName
// reduces arbitrary text to a conservative filename alphabet; accented
// letters are transliterated to their base form first so "Café" becomes
// "Cafe" rather than "Caf_".
package textutil
