// Package reconcile folds fetched feeds into the episode store and applies the
// failure policy to subscriptions whose feeds keep failing.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"castkeep/internal/config"
	"castkeep/internal/failpolicy"
	"castkeep/internal/feed"
	"castkeep/internal/logging"
	"castkeep/internal/store"
	"castkeep/internal/textutil"
)

const defaultMimeType = "application/octet-stream"

// Repository is the slice of the store the reconciler writes through.
type Repository interface {
	UpsertFromFeed(ctx context.Context, subscriptionID int64, candidate store.Episode) (store.UpsertOutcome, error)
	UpdateSubscription(ctx context.Context, sub store.Subscription) error
}

// Outcome summarizes one subscription's pass.
type Outcome struct {
	SubscriptionID int64
	Inserted       int
	Updated        int
	Ambiguous      int
	NotModified    bool
	Failed         bool
	// Disabled is set when this pass moved the subscription to ErrorDisabled.
	Disabled bool
	// Err is a storage error that cut the pass short.
	Err error
}

// Reconciler applies feed results to subscriptions.
type Reconciler struct {
	repo   Repository
	source feed.Source
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Reconciler.
func New(repo Repository, source feed.Source, cfg *config.Config, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		source: source,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "reconcile"),
		now:    time.Now,
	}
}

// SetClock overrides the time source.
func (r *Reconciler) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Run fetches and reconciles every enabled subscription in subs, in order.
// It stops early and returns the context error when ctx is cancelled; the
// subscription being fetched at that moment is left untouched.
func (r *Reconciler) Run(ctx context.Context, subs []store.Subscription) ([]Outcome, error) {
	var outcomes []Outcome
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if !sub.Enabled() {
			r.logger.Debug("skipping disabled subscription",
				logging.Int64(logging.FieldSubscriptionID, sub.ID),
				logging.String("state", sub.State.String()),
			)
			continue
		}

		r.logger.Info("updating subscription",
			logging.Int64(logging.FieldSubscriptionID, sub.ID),
			logging.String("url", sub.SourceURL),
		)
		result, fetchErr := r.source.Fetch(ctx, sub.SourceURL)
		if fetchErr != nil && ctx.Err() != nil {
			return outcomes, ctx.Err()
		}

		outcome, err := r.Reconcile(ctx, sub, result, fetchErr)
		if err != nil {
			if ctx.Err() != nil {
				return outcomes, ctx.Err()
			}
			logging.ErrorWithContext(r.logger, "subscription update aborted", "subscription_update_aborted",
				logging.Int64(logging.FieldSubscriptionID, sub.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the database file and free disk space"),
			)
			outcome.Err = err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// Reconcile applies one fetch result to sub. fetchErr is the error returned
// by the feed source, if any; it counts against the subscription's failure
// budget. The returned error is a storage failure.
func (r *Reconciler) Reconcile(ctx context.Context, sub store.Subscription, result feed.Result, fetchErr error) (Outcome, error) {
	outcome := Outcome{SubscriptionID: sub.ID}
	now := r.now()
	sub.LastAttempt = &now

	if fetchErr != nil {
		return r.recordFailure(ctx, sub, outcome, now, fetchErr)
	}

	if result.NotModified || result.Feed == nil {
		outcome.NotModified = true
		r.logger.Info("feed not modified", logging.Int64(logging.FieldSubscriptionID, sub.ID))
	} else {
		if err := r.applyItems(ctx, sub.ID, result.Feed.Items, &outcome); err != nil {
			return outcome, err
		}
		if sub.Title == "" {
			sub.Title = textutil.SanitizeBasic(strings.TrimSpace(result.Feed.Title))
		}
	}

	sub.Failures = 0
	sub.LastSuccess = &now
	if err := r.repo.UpdateSubscription(ctx, sub); err != nil {
		return outcome, fmt.Errorf("record update of subscription %d: %w", sub.ID, err)
	}
	if outcome.Inserted > 0 {
		r.logger.Info("new episodes found",
			logging.Int64(logging.FieldSubscriptionID, sub.ID),
			logging.Int("count", outcome.Inserted),
			logging.String(logging.FieldEventType, "episodes_added"),
		)
	}
	return outcome, nil
}

func (r *Reconciler) applyItems(ctx context.Context, subscriptionID int64, items []feed.Item, outcome *Outcome) error {
	for _, item := range items {
		for _, candidate := range Candidates(item) {
			res, err := r.repo.UpsertFromFeed(ctx, subscriptionID, candidate)
			switch {
			case errors.Is(err, store.ErrAmbiguousEpisodeMatch):
				outcome.Ambiguous++
				logging.WarnWithContext(r.logger, "feed item matches more than one episode; skipped", "episode_match_ambiguous",
					logging.Int64(logging.FieldSubscriptionID, subscriptionID),
					logging.String("guid", candidate.GUID),
					logging.String("url", candidate.EnclosureURL),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "the feed reuses a GUID or enclosure URL across items"),
					logging.String(logging.FieldImpact, "this feed item is not recorded"),
				)
			case err != nil:
				return fmt.Errorf("record episode %q: %w", candidate.EnclosureURL, err)
			case res == store.Inserted:
				outcome.Inserted++
			default:
				outcome.Updated++
			}
		}
	}
	return nil
}

func (r *Reconciler) recordFailure(ctx context.Context, sub store.Subscription, outcome Outcome, now time.Time, fetchErr error) (Outcome, error) {
	outcome.Failed = true
	sub.Failures++

	limits := r.cfg.ForSubscription(sub.ID).SubscriptionLimits()
	elapsed := failpolicy.Elapsed(sub.LastSuccess, now)
	if limits.Exceeded(sub.Failures, elapsed) {
		sub.State = store.ErrorDisabled
		outcome.Disabled = true
	}

	attrs := []logging.Attr{
		logging.Int64(logging.FieldSubscriptionID, sub.ID),
		logging.String("url", sub.SourceURL),
		logging.Int("failures", sub.Failures),
		logging.Error(fetchErr),
	}
	if outcome.Disabled {
		logging.WarnWithContext(r.logger, "subscription disabled after repeated failures", "subscription_disabled",
			append(attrs,
				logging.String(logging.FieldErrorHint, "fix the feed URL, then run castkeep enable "+strconv.FormatInt(sub.ID, 10)),
				logging.String(logging.FieldImpact, "subscription is skipped by update and download"),
			)...)
	} else {
		logging.WarnWithContext(r.logger, "feed update failed", "feed_update_failed",
			append(attrs,
				logging.String(logging.FieldImpact, "subscription will be retried on the next update"),
			)...)
	}

	if err := r.repo.UpdateSubscription(ctx, sub); err != nil {
		return outcome, fmt.Errorf("record failure of subscription %d: %w", sub.ID, err)
	}
	return outcome, nil
}

// Candidates turns an item into one episode candidate per enclosure. Items
// with several enclosures get the enclosure index appended to their GUID so
// each enclosure keeps its own identity.
func Candidates(item feed.Item) []store.Episode {
	title := textutil.SanitizeBasic(strings.TrimSpace(item.Title))
	guid := textutil.SanitizeBasic(strings.TrimSpace(item.GUID))

	var out []store.Episode
	for i, enc := range item.Enclosures {
		url := textutil.SanitizeBasic(strings.TrimSpace(enc.URL))
		if url == "" {
			continue
		}
		epGUID := guid
		if epGUID != "" && len(item.Enclosures) > 1 {
			epGUID += "/" + strconv.Itoa(i)
		}
		mimeType := textutil.SanitizeBasic(strings.TrimSpace(enc.Type))
		if mimeType == "" {
			mimeType = defaultMimeType
		}
		length := enc.Length
		if length < 0 {
			length = 0
		}
		out = append(out, store.Episode{
			Title:        title,
			EnclosureURL: url,
			MimeType:     mimeType,
			GUID:         epGUID,
			SizeBytes:    length,
			Status:       store.StatusPending,
		})
	}
	return out
}
