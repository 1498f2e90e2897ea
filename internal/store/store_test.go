package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"castkeep/internal/store"
	"castkeep/internal/testsupport"
)

func TestAddSubscription(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub, err := st.AddSubscription(ctx, "http://example.com/feed.xml")
	if err != nil {
		t.Fatalf("AddSubscription failed: %v", err)
	}
	if sub.ID != 1 {
		t.Fatalf("expected first subscription id 1, got %d", sub.ID)
	}
	if sub.State != store.Enabled || sub.Failures != 0 || sub.LastSuccess != nil || sub.LastAttempt != nil {
		t.Fatalf("unexpected new subscription: %#v", sub)
	}

	if _, err := st.AddSubscription(ctx, "http://example.com/feed.xml"); !errors.Is(err, store.ErrDuplicateSubscription) {
		t.Fatalf("expected ErrDuplicateSubscription, got %v", err)
	}

	missing, err := st.GetSubscription(ctx, 99)
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown id, got %#v", missing)
	}
}

func TestUpdateSubscriptionRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.MustAddSubscription(t, st, "http://example.com/feed.xml", "")
	now := time.Unix(1700000000, 0)
	sub.Title = "Example Cast"
	sub.State = store.ErrorDisabled
	sub.LastAttempt = &now
	sub.Failures = 4
	if err := st.UpdateSubscription(ctx, *sub); err != nil {
		t.Fatalf("UpdateSubscription failed: %v", err)
	}

	got, err := st.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if got.Title != "Example Cast" || got.State != store.ErrorDisabled || got.Failures != 4 {
		t.Fatalf("unexpected subscription: %#v", got)
	}
	if got.LastAttempt == nil || !got.LastAttempt.Equal(now) {
		t.Fatalf("last attempt = %v, want %v", got.LastAttempt, now)
	}
	if got.LastSuccess != nil {
		t.Fatalf("expected no last success, got %v", got.LastSuccess)
	}

	// Updating a subscription that does not exist is silently ignored.
	ghost := *got
	ghost.ID = 42
	ghost.SourceURL = "http://example.com/ghost.xml"
	if err := st.UpdateSubscription(ctx, ghost); err != nil {
		t.Fatalf("expected no-op for missing subscription, got %v", err)
	}
	if missing, _ := st.GetSubscription(ctx, 42); missing != nil {
		t.Fatalf("expected missing subscription to stay missing, got %#v", missing)
	}
}

func TestListSubscriptionsSelection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.MustAddSubscription(t, st, "http://example.com/a.xml", "A")
	testsupport.MustAddSubscription(t, st, "http://example.com/b.xml", "B")
	c := testsupport.MustAddSubscription(t, st, "http://example.com/c.xml", "C")

	all, err := st.ListSubscriptions(ctx, nil)
	if err != nil {
		t.Fatalf("ListSubscriptions failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 subscriptions, got %d", len(all))
	}

	picked, err := st.ListSubscriptions(ctx, []int64{c.ID, a.ID, c.ID, 500})
	if err != nil {
		t.Fatalf("ListSubscriptions failed: %v", err)
	}
	if len(picked) != 2 || picked[0].ID != a.ID || picked[1].ID != c.ID {
		t.Fatalf("unexpected selection: %#v", picked)
	}
}

func TestUpsertFromFeedInsertsWithNextSequence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.MustAddSubscription(t, st, "http://example.com/feed.xml", "Cast")
	for i, url := range []string{"http://example.com/1.mp3", "http://example.com/2.mp3"} {
		outcome, err := st.UpsertFromFeed(ctx, sub.ID, store.Episode{
			Title:        "Episode",
			EnclosureURL: url,
			MimeType:     "audio/mpeg",
			GUID:         url + "#guid",
		})
		if err != nil {
			t.Fatalf("UpsertFromFeed %d failed: %v", i, err)
		}
		if outcome != store.Inserted {
			t.Fatalf("outcome = %v, want inserted", outcome)
		}
	}

	episodes, err := st.ListEpisodes(ctx, sub.ID, nil)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes))
	}
	for i, ep := range episodes {
		if ep.Seq != int64(i+1) {
			t.Fatalf("episode %d has seq %d", i, ep.Seq)
		}
		if ep.Status != store.StatusPending || ep.Failures != 0 || ep.FirstAttempt != nil {
			t.Fatalf("unexpected new episode: %#v", ep)
		}
	}
}

func TestUpsertFromFeedMatchesByGUIDAndKeepsState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.MustAddSubscription(t, st, "http://example.com/feed.xml", "Cast")
	ep := testsupport.MustUpsert(t, st, sub.ID, store.Episode{
		Title:        "Old title",
		EnclosureURL: "http://cdn-a.example.com/ep.mp3",
		MimeType:     "audio/mpeg",
		GUID:         "guid-1",
	})
	first := time.Unix(1700000000, 0)
	ep.Status = store.StatusError
	ep.Failures = 3
	ep.FirstAttempt = &first
	ep.LastAttempt = &first
	if err := st.UpdateEpisode(ctx, ep); err != nil {
		t.Fatalf("UpdateEpisode failed: %v", err)
	}

	outcome, err := st.UpsertFromFeed(ctx, sub.ID, store.Episode{
		Title:        "New title",
		EnclosureURL: "http://cdn-b.example.com/ep.mp3",
		MimeType:     "audio/mp4",
		GUID:         "guid-1",
		SizeBytes:    2048,
	})
	if err != nil {
		t.Fatalf("UpsertFromFeed failed: %v", err)
	}
	if outcome != store.Updated {
		t.Fatalf("outcome = %v, want updated", outcome)
	}

	episodes, err := st.ListEpisodes(ctx, sub.ID, nil)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(episodes))
	}
	got := episodes[0]
	if got.Seq != ep.Seq || got.Title != "New title" || got.EnclosureURL != "http://cdn-b.example.com/ep.mp3" {
		t.Fatalf("metadata not refreshed: %#v", got)
	}
	if got.MimeType != "audio/mp4" || got.SizeBytes != 2048 {
		t.Fatalf("type/size not refreshed: %#v", got)
	}
	if got.Status != store.StatusError || got.Failures != 3 || got.FirstAttempt == nil || !got.FirstAttempt.Equal(first) {
		t.Fatalf("download state should be untouched: %#v", got)
	}
}

func TestUpsertFromFeedMatchesByURLWithoutGUID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.MustAddSubscription(t, st, "http://example.com/feed.xml", "Cast")
	ep := testsupport.MustUpsert(t, st, sub.ID, store.Episode{
		Title:        "No guid",
		EnclosureURL: "http://example.com/ep.mp3",
		MimeType:     "audio/mpeg",
	})
	ep.Status = store.StatusDownloaded
	if err := st.UpdateEpisode(ctx, ep); err != nil {
		t.Fatalf("UpdateEpisode failed: %v", err)
	}

	outcome, err := st.UpsertFromFeed(ctx, sub.ID, store.Episode{
		Title:        "No guid, retitled",
		EnclosureURL: "http://example.com/ep.mp3",
		MimeType:     "audio/mpeg",
	})
	if err != nil {
		t.Fatalf("UpsertFromFeed failed: %v", err)
	}
	if outcome != store.Updated {
		t.Fatalf("outcome = %v, want updated", outcome)
	}
	episodes, _ := st.ListEpisodes(ctx, sub.ID, nil)
	if len(episodes) != 1 || episodes[0].Status != store.StatusDownloaded || episodes[0].Title != "No guid, retitled" {
		t.Fatalf("unexpected episodes: %#v", episodes)
	}
}

func TestUpsertFromFeedAmbiguousMatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.MustAddSubscription(t, st, "http://example.com/feed.xml", "Cast")
	testsupport.MustUpsert(t, st, sub.ID, store.Episode{Title: "A", EnclosureURL: "http://example.com/a.mp3", MimeType: "audio/mpeg", GUID: "guid-a"})
	testsupport.MustUpsert(t, st, sub.ID, store.Episode{Title: "B", EnclosureURL: "http://example.com/b.mp3", MimeType: "audio/mpeg"})

	// GUID points at A while the URL already belongs to B.
	_, err := st.UpsertFromFeed(ctx, sub.ID, store.Episode{Title: "X", EnclosureURL: "http://example.com/b.mp3", MimeType: "audio/mpeg", GUID: "guid-a"})
	if !errors.Is(err, store.ErrAmbiguousEpisodeMatch) {
		t.Fatalf("expected ErrAmbiguousEpisodeMatch, got %v", err)
	}

	episodes, _ := st.ListEpisodes(ctx, sub.ID, nil)
	if len(episodes) != 2 || episodes[0].Title != "A" || episodes[1].Title != "B" {
		t.Fatalf("ambiguous candidate must not change the store: %#v", episodes)
	}
}

func TestUpdateEpisodeNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.MustAddSubscription(t, st, "http://example.com/feed.xml", "Cast")
	err := st.UpdateEpisode(ctx, store.Episode{SubscriptionID: sub.ID, Seq: 9, Title: "t", EnclosureURL: "http://example.com/x.mp3", MimeType: "audio/mpeg", Status: store.StatusPending})
	if !errors.Is(err, store.ErrEpisodeNotFound) {
		t.Fatalf("expected ErrEpisodeNotFound, got %v", err)
	}
}

func TestListEpisodesSelection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sub := testsupport.MustAddSubscription(t, st, "http://example.com/feed.xml", "Cast")
	for _, url := range []string{"http://example.com/1.mp3", "http://example.com/2.mp3", "http://example.com/3.mp3"} {
		testsupport.MustUpsert(t, st, sub.ID, store.Episode{Title: url, EnclosureURL: url, MimeType: "audio/mpeg"})
	}
	episodes, err := st.ListEpisodes(ctx, sub.ID, []int64{3, 1, 3, 77})
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(episodes) != 2 || episodes[0].Seq != 1 || episodes[1].Seq != 3 {
		t.Fatalf("unexpected selection: %#v", episodes)
	}
}

func TestRemoveSubscriptionDeletesEpisodes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	keep := testsupport.MustAddSubscription(t, st, "http://example.com/keep.xml", "Keep")
	drop := testsupport.MustAddSubscription(t, st, "http://example.com/drop.xml", "Drop")
	testsupport.MustUpsert(t, st, keep.ID, store.Episode{Title: "k", EnclosureURL: "http://example.com/k.mp3", MimeType: "audio/mpeg"})
	testsupport.MustUpsert(t, st, drop.ID, store.Episode{Title: "d", EnclosureURL: "http://example.com/d.mp3", MimeType: "audio/mpeg"})

	if err := st.RemoveSubscription(ctx, drop.ID); err != nil {
		t.Fatalf("RemoveSubscription failed: %v", err)
	}
	if err := st.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}
	if got, _ := st.GetSubscription(ctx, drop.ID); got != nil {
		t.Fatalf("expected subscription removed, got %#v", got)
	}
	if eps, _ := st.ListEpisodes(ctx, drop.ID, nil); len(eps) != 0 {
		t.Fatalf("expected episodes removed, got %d", len(eps))
	}

	counts, err := st.CountEpisodes(ctx)
	if err != nil {
		t.Fatalf("CountEpisodes failed: %v", err)
	}
	if counts[keep.ID].Total != 1 || counts[keep.ID].Pending != 1 {
		t.Fatalf("unexpected counts for kept subscription: %#v", counts[keep.ID])
	}
	if _, ok := counts[drop.ID]; ok {
		t.Fatalf("expected no counts for removed subscription")
	}
}

func TestParseEpisodeStatus(t *testing.T) {
	got, err := store.ParseEpisodeStatus(" downloaded ")
	if err != nil || got != store.StatusDownloaded {
		t.Fatalf("ParseEpisodeStatus = %v, %v", got, err)
	}
	if _, err := store.ParseEpisodeStatus("archived"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
