package testsupport

import (
	"context"
	"testing"

	"castkeep/internal/config"
	"castkeep/internal/logging"
	"castkeep/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(context.Background(), cfg.Paths.DatabasePath,
		store.WithScratchDir(cfg.Paths.ScratchDir),
		store.WithLogger(logging.NewNop()),
	)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustAddSubscription subscribes to sourceURL and optionally sets a title.
func MustAddSubscription(t testing.TB, st *store.Store, sourceURL, title string) *store.Subscription {
	t.Helper()

	ctx := context.Background()
	sub, err := st.AddSubscription(ctx, sourceURL)
	if err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}
	if title != "" {
		sub.Title = title
		if err := st.UpdateSubscription(ctx, *sub); err != nil {
			t.Fatalf("UpdateSubscription: %v", err)
		}
	}
	return sub
}

// MustUpsert records an episode candidate and returns the stored episode.
func MustUpsert(t testing.TB, st *store.Store, subscriptionID int64, candidate store.Episode) store.Episode {
	t.Helper()

	ctx := context.Background()
	if _, err := st.UpsertFromFeed(ctx, subscriptionID, candidate); err != nil {
		t.Fatalf("UpsertFromFeed: %v", err)
	}
	episodes, err := st.ListEpisodes(ctx, subscriptionID, nil)
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	for _, ep := range episodes {
		if ep.EnclosureURL == candidate.EnclosureURL {
			return ep
		}
	}
	t.Fatalf("episode %q not stored", candidate.EnclosureURL)
	return store.Episode{}
}
