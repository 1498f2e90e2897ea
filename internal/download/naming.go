package download

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"castkeep/internal/config"
	"castkeep/internal/store"
	"castkeep/internal/textutil"
)

var placeholderPattern = regexp.MustCompile(`%\((\w+)\)s|\{(\w+)\}`)

// namingVars returns the values available to naming patterns.
func namingVars(sub store.Subscription, ep store.Episode, filename string) map[string]string {
	return map[string]string{
		"castid":        fmt.Sprintf("%03d", sub.ID),
		"epid":          fmt.Sprintf("%04d", ep.Seq),
		"safecasttitle": textutil.SanitizeFileName(sub.Title),
		"safeeptitle":   textutil.SanitizeFileName(ep.Title),
		"safefilename":  textutil.SanitizeFileName(filename),
	}
}

// Expand substitutes %(name)s and {name} placeholders. Unknown names are
// left as written.
func Expand(pattern string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(pattern, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		if value, ok := vars[strings.ToLower(name)]; ok {
			return value
		}
		return match
	})
}

// Destination computes the library path for an episode, including the
// rename-type suffix for mimeType.
func Destination(settings config.Settings, sub store.Subscription, ep store.Episode, filename, mimeType string) string {
	vars := namingVars(sub, ep, filename)
	dest := filepath.Join(
		Expand(strings.TrimSpace(settings.DownloadDir), vars),
		Expand(strings.TrimSpace(settings.NamingPattern), vars),
	)
	if suffix := settings.RenameTypeMap()[mimeType]; suffix != "" && !strings.HasSuffix(dest, suffix) {
		dest += suffix
	}
	return dest
}

// episodeEnv is the environment handed to classify and post-process
// commands.
func episodeEnv(sub store.Subscription, ep store.Episode, filename string) []string {
	return []string{
		"CASTID=" + strconv.FormatInt(sub.ID, 10),
		"CASTTITLE=" + sub.Title,
		"EPFILENAME=" + filename,
		"EPID=" + strconv.FormatInt(ep.Seq, 10),
		"EPTITLE=" + ep.Title,
		"EPURL=" + ep.EnclosureURL,
		"FEEDURL=" + sub.SourceURL,
		"SAFECASTTITLE=" + textutil.SanitizeFileName(sub.Title),
		"SAFEEPTITLE=" + textutil.SanitizeFileName(ep.Title),
	}
}
