package store

import (
	"fmt"
	"strings"
	"time"
)

// EnabledState controls whether a subscription takes part in updates and
// downloads. The numeric values are what the store persists.
type EnabledState int

const (
	UserDisabled  EnabledState = 0
	Enabled       EnabledState = 1
	ErrorDisabled EnabledState = 2
)

func (s EnabledState) String() string {
	switch s {
	case UserDisabled:
		return "UserDisabled"
	case Enabled:
		return "Enabled"
	case ErrorDisabled:
		return "ErrorDisabled"
	default:
		return fmt.Sprintf("EnabledState(%d)", int(s))
	}
}

func enabledStateFromDB(value int64) (EnabledState, error) {
	switch state := EnabledState(value); state {
	case UserDisabled, Enabled, ErrorDisabled:
		return state, nil
	}
	return 0, fmt.Errorf("%w: unknown subscription state %d", ErrUnrecognizedSchemaVersion, value)
}

// EpisodeStatus is the download state of an episode, persisted as text.
type EpisodeStatus string

const (
	StatusPending    EpisodeStatus = "Pending"
	StatusDownloaded EpisodeStatus = "Downloaded"
	StatusError      EpisodeStatus = "Error"
	StatusSkipped    EpisodeStatus = "Skipped"
)

// EpisodeStatuses lists every status in display order.
var EpisodeStatuses = []EpisodeStatus{StatusPending, StatusDownloaded, StatusError, StatusSkipped}

func episodeStatusFromDB(value string) (EpisodeStatus, error) {
	for _, s := range EpisodeStatuses {
		if string(s) == value {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown episode status %q", ErrUnrecognizedSchemaVersion, value)
}

// ParseEpisodeStatus accepts a status name in any letter case.
func ParseEpisodeStatus(value string) (EpisodeStatus, error) {
	trimmed := strings.TrimSpace(value)
	for _, s := range EpisodeStatuses {
		if strings.EqualFold(string(s), trimmed) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown episode status %q (want one of Pending, Downloaded, Error, Skipped)", value)
}

// Subscription is a tracked feed.
type Subscription struct {
	ID          int64
	Title       string
	SourceURL   string
	State       EnabledState
	LastSuccess *time.Time
	LastAttempt *time.Time
	Failures    int
}

// Enabled reports whether the subscription takes part in updates and downloads.
func (s Subscription) Enabled() bool {
	return s.State == Enabled
}

// Episode is one enclosure discovered in a subscription's feed. GUID is empty
// when the feed supplied none.
type Episode struct {
	SubscriptionID int64
	Seq            int64
	Title          string
	EnclosureURL   string
	MimeType       string
	GUID           string
	SizeBytes      int64
	Status         EpisodeStatus
	FirstAttempt   *time.Time
	LastAttempt    *time.Time
	Failures       int
}

// UpsertOutcome reports what UpsertFromFeed did with a candidate.
type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota + 1
	Updated
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// EpisodeCounts summarizes a subscription's episodes.
type EpisodeCounts struct {
	Total   int
	Pending int
}
