package deps

import (
	"slices"
	"strconv"
	"strings"

	"castkeep/internal/config"
)

// CommandBinary returns the program a shell command line starts, skipping
// leading VAR=value assignments and surrounding quotes.
func CommandBinary(commandLine string) string {
	for _, field := range strings.Fields(commandLine) {
		if name, _, ok := strings.Cut(field, "="); ok && isEnvName(name) {
			continue
		}
		return strings.Trim(field, `"'`)
	}
	return ""
}

func isEnvName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Requirements lists the commands configured in [defaults] and every
// subscription override. Each distinct command appears once.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}

	settings := []config.Settings{cfg.ForSubscription(0)}
	keys := make([]string, 0, len(cfg.Subscriptions))
	for key := range cfg.Subscriptions {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		settings = append(settings, cfg.ForSubscription(id))
	}

	var reqs []Requirement
	seen := make(map[string]struct{})
	add := func(name, command, description string) {
		command = strings.TrimSpace(command)
		if command == "" {
			return
		}
		if _, ok := seen[command]; ok {
			return
		}
		seen[command] = struct{}{}
		reqs = append(reqs, Requirement{
			Name:        name,
			Command:     command,
			Description: description,
			Optional:    true,
		})
	}
	for _, s := range settings {
		add("Classifier", s.ClassifyCommand, "Detects the media type of downloaded enclosures")
		add("Post-processor", s.PostProcessCommand, "Runs on downloads of the configured types")
		// The hook path is run as a single word.
		add("Post hook", quoteWord(s.PostHook), "Runs after every download")
	}
	return reqs
}

func quoteWord(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return `"` + path + `"`
}
