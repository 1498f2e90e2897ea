package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"castkeep/internal/failpolicy"
)

// Settings is the effective subscription-level configuration for one
// subscription, with overrides applied.
type Settings struct {
	Defaults
	SubscriptionID int64
}

// ForSubscription merges [defaults] with the override section for id.
func (c *Config) ForSubscription(id int64) Settings {
	s := Settings{Defaults: c.Defaults, SubscriptionID: id}
	o, ok := c.Subscriptions[strconv.FormatInt(id, 10)]
	if !ok {
		return s
	}
	applyString(&s.DownloadDir, o.DownloadDir)
	applyString(&s.NamingPattern, o.NamingPattern)
	applyInt(&s.SubscriptionFailDays, o.SubscriptionFailDays)
	applyInt(&s.SubscriptionFailAttempts, o.SubscriptionFailAttempts)
	applyInt(&s.EpisodeFailDays, o.EpisodeFailDays)
	applyInt(&s.EpisodeFailAttempts, o.EpisodeFailAttempts)
	applyString(&s.RenameTypes, o.RenameTypes)
	applyString(&s.PostProcessTypes, o.PostProcessTypes)
	applyString(&s.ClassifyCommand, o.ClassifyCommand)
	applyString(&s.PostProcessCommand, o.PostProcessCommand)
	applyString(&s.PostHook, o.PostHook)
	return s
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// SubscriptionLimits returns the failure thresholds for feed updates.
func (s Settings) SubscriptionLimits() failpolicy.Limits {
	return failpolicy.NewLimits(s.SubscriptionFailAttempts, s.SubscriptionFailDays)
}

// EpisodeLimits returns the failure thresholds for enclosure downloads.
func (s Settings) EpisodeLimits() failpolicy.Limits {
	return failpolicy.NewLimits(s.EpisodeFailAttempts, s.EpisodeFailDays)
}

// RenameTypeMap parses RenameTypes. Validate has already rejected malformed
// values, so a parse error here yields an empty map.
func (s Settings) RenameTypeMap() map[string]string {
	m, err := ParseRenameTypes(s.RenameTypes)
	if err != nil {
		return map[string]string{}
	}
	return m
}

// PostProcessAll reports whether post-processing applies to every type.
func (s Settings) PostProcessAll() bool {
	for _, t := range s.PostProcessTypeList() {
		if t == "*" || strings.EqualFold(t, "all") {
			return true
		}
	}
	return false
}

// PostProcessTypeList splits PostProcessTypes into trimmed entries.
func (s Settings) PostProcessTypeList() []string {
	return splitList(s.PostProcessTypes)
}

// ParseRenameTypes parses "type:suffix,type:suffix". An entry without a colon
// is rejected.
func ParseRenameTypes(value string) (map[string]string, error) {
	out := make(map[string]string)
	for _, entry := range splitList(value) {
		mime, suffix, ok := strings.Cut(entry, ":")
		mime = strings.TrimSpace(mime)
		if !ok || mime == "" {
			return nil, fmt.Errorf("invalid entry %q: %w", entry, errRenamePair)
		}
		out[mime] = strings.TrimSpace(suffix)
	}
	return out, nil
}

var errRenamePair = errors.New("expected type:suffix")

// CommandTimeout returns the bound applied to each external command.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Commands.TimeoutSeconds) * time.Second
}

// NetworkTimeout returns the bound applied to each feed request and to the
// connect and header phases of enclosure downloads.
func (c *Config) NetworkTimeout() time.Duration {
	return time.Duration(c.Network.TimeoutSeconds) * time.Second
}

// StallTimeout returns how long an enclosure download may go without
// receiving data.
func (c *Config) StallTimeout() time.Duration {
	return time.Duration(c.Network.StallTimeoutSeconds) * time.Second
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
