package store

import "errors"

var (
	// ErrDuplicateSubscription is returned when a feed URL is already subscribed.
	ErrDuplicateSubscription = errors.New("subscription already exists")
	// ErrEpisodeNotFound is returned when an episode update matches no row.
	ErrEpisodeNotFound = errors.New("episode not found")
	// ErrAmbiguousEpisodeMatch is returned when a feed candidate matches more
	// than one stored episode, or would collide with one it does not match.
	ErrAmbiguousEpisodeMatch = errors.New("ambiguous episode match")
	// ErrUnrecognizedSchemaVersion is returned for stores written by a newer
	// release and for stored values this release cannot decode.
	ErrUnrecognizedSchemaVersion = errors.New("unrecognized database schema version")
)
