package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"slices"
	"strings"
	"time"

	"castkeep/internal/config"
	"castkeep/internal/failpolicy"
	"castkeep/internal/fileutil"
	"castkeep/internal/logging"
	"castkeep/internal/staging"
	"castkeep/internal/store"
)

// Repository is the slice of the store the pipeline reads and writes.
type Repository interface {
	ListSubscriptions(ctx context.Context, ids []int64) ([]store.Subscription, error)
	ListEpisodes(ctx context.Context, subscriptionID int64, seqs []int64) ([]store.Episode, error)
	UpdateEpisode(ctx context.Context, ep store.Episode) error
}

// Summary counts what a batch did.
type Summary struct {
	Considered     int
	Downloaded     int
	Failed         int
	Disabled       int
	Errored        int
	RemovedScratch int
}

// Pipeline downloads Pending episodes.
type Pipeline struct {
	repo       Repository
	fetcher    EnclosureFetcher
	runner     CommandRunner
	cfg        *config.Config
	scratchDir string
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a Pipeline that stages enclosures in the configured scratch
// directory.
func New(repo Repository, fetcher EnclosureFetcher, runner CommandRunner, cfg *config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		repo:       repo,
		fetcher:    fetcher,
		runner:     runner,
		cfg:        cfg,
		scratchDir: cfg.Paths.ScratchDir,
		logger:     logging.NewComponentLogger(logger, "download"),
		now:        time.Now,
	}
}

// SetClock overrides the time source.
func (p *Pipeline) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

type job struct {
	sub store.Subscription
	ep  store.Episode
}

// Run downloads the Pending episodes of every enabled subscription in subs,
// ordered by subscription and then episode. An episode that fails is logged
// and the batch moves on. Cancellation ends the batch and Run returns the
// context error. Episodes that vanished from the store mid-batch do not stop
// the batch, but Run then returns an error wrapping store.ErrEpisodeNotFound.
// Scratch files of episodes that are no longer Pending are removed before Run
// returns, even after cancellation.
func (p *Pipeline) Run(ctx context.Context, subs []store.Subscription) (Summary, error) {
	var summary Summary
	var missing int

	jobs, err := p.pendingJobs(ctx, subs)
	if err != nil {
		return summary, err
	}
	p.logger.Info("episodes to consider",
		logging.Int("episodes", len(jobs)),
		logging.Int("subscriptions", countEnabled(subs)),
	)

	var runErr error
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		summary.Considered++

		err := p.downloadEpisode(ctx, j.sub, j.ep, &summary)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			runErr = ctx.Err()
			p.logger.Info("download interrupted",
				logging.Int64(logging.FieldSubscriptionID, j.sub.ID),
				logging.Int64(logging.FieldEpisodeID, j.ep.Seq),
				logging.String(logging.FieldEventType, "download_interrupted"),
			)
			break
		}
		summary.Errored++
		hint := "check download_dir permissions and the configured commands"
		if errors.Is(err, store.ErrEpisodeNotFound) {
			missing++
			hint = "the episode was removed while downloading"
		}
		logging.ErrorWithContext(p.logger, "episode download aborted", "episode_download_aborted",
			logging.Int64(logging.FieldSubscriptionID, j.sub.ID),
			logging.Int64(logging.FieldEpisodeID, j.ep.Seq),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hint),
		)
	}

	summary.RemovedScratch = p.cleanScratch(context.WithoutCancel(ctx))
	if missing > 0 {
		runErr = errors.Join(runErr, fmt.Errorf("%w: %d episode(s) changed underneath the batch", store.ErrEpisodeNotFound, missing))
	}
	return summary, runErr
}

func (p *Pipeline) pendingJobs(ctx context.Context, subs []store.Subscription) ([]job, error) {
	var jobs []job
	for _, sub := range subs {
		if !sub.Enabled() {
			continue
		}
		episodes, err := p.repo.ListEpisodes(ctx, sub.ID, nil)
		if err != nil {
			return nil, fmt.Errorf("list episodes of subscription %d: %w", sub.ID, err)
		}
		for _, ep := range episodes {
			if ep.Status == store.StatusPending {
				jobs = append(jobs, job{sub: sub, ep: ep})
			}
		}
	}
	return jobs, nil
}

func (p *Pipeline) downloadEpisode(ctx context.Context, sub store.Subscription, ep store.Episode, summary *Summary) error {
	settings := p.cfg.ForSubscription(sub.ID)
	logger := p.logger.With(
		logging.Int64(logging.FieldSubscriptionID, sub.ID),
		logging.Int64(logging.FieldEpisodeID, ep.Seq),
	)

	now := p.now()
	ep.LastAttempt = &now
	if ep.FirstAttempt == nil {
		ep.FirstAttempt = &now
	}
	if err := p.repo.UpdateEpisode(ctx, ep); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}

	logger.Info("downloading episode", logging.String("title", ep.Title), logging.String("url", ep.EnclosureURL))
	fetched, err := p.fetcher.Fetch(ctx, ep.EnclosureURL, staging.ScratchPath(p.scratchDir, ep.EnclosureURL))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.recordFailure(ctx, logger, settings, ep, err, summary)
	}

	mimeType, err := p.classify(ctx, logger, settings, sub, ep, fetched)
	if err != nil {
		return err
	}

	dest := Destination(settings, sub, ep, fetched.Filename, mimeType)
	final, err := fileutil.MoveNoClobber(fetched.Path, dest)
	if err != nil {
		if final == "" {
			return fmt.Errorf("place episode: %w", err)
		}
		logging.WarnWithContext(logger, "episode placed but scratch copy remains", "scratch_copy_left",
			logging.String("path", final),
			logging.Error(err),
			logging.String(logging.FieldImpact, "scratch file is removed by the next cleanup"),
		)
	}
	_ = os.Remove(fetched.Path + staging.MessageSuffix)

	if err := p.postProcess(ctx, logger, settings, sub, ep, final, mimeType); err != nil {
		return err
	}

	ep.Status = store.StatusDownloaded
	ep.MimeType = mimeType
	if err := p.repo.UpdateEpisode(ctx, ep); err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	summary.Downloaded++
	logger.Info("episode downloaded",
		logging.String("path", final),
		logging.String("mime_type", mimeType),
		logging.String(logging.FieldEventType, "episode_downloaded"),
	)
	return nil
}

func (p *Pipeline) recordFailure(ctx context.Context, logger *slog.Logger, settings config.Settings, ep store.Episode, cause error, summary *Summary) error {
	ep.Failures++
	summary.Failed++

	elapsed := failpolicy.Elapsed(ep.FirstAttempt, *ep.LastAttempt)
	if settings.EpisodeLimits().Exceeded(ep.Failures, elapsed) {
		ep.Status = store.StatusError
		summary.Disabled++
		logging.WarnWithContext(logger, "episode marked Error after repeated failures", "episode_disabled",
			logging.Int("failures", ep.Failures),
			logging.Error(cause),
			logging.String(logging.FieldErrorHint, "use setstatus to retry once the enclosure is reachable"),
			logging.String(logging.FieldImpact, "episode is no longer downloaded"),
		)
	} else {
		logging.WarnWithContext(logger, "episode download failed", "episode_download_failed",
			logging.Int("failures", ep.Failures),
			logging.Error(cause),
			logging.String(logging.FieldImpact, "episode will be retried on the next download"),
		)
	}

	if err := p.repo.UpdateEpisode(ctx, ep); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// classify determines the episode's media type. Only cancellation is
// returned as an error; a failing classifier falls back to the served type
// and then the type the feed announced.
func (p *Pipeline) classify(ctx context.Context, logger *slog.Logger, settings config.Settings, sub store.Subscription, ep store.Episode, fetched Fetched) (string, error) {
	fallback := fetched.ContentType
	if fallback == "" {
		fallback = ep.MimeType
	}
	command := strings.TrimSpace(settings.ClassifyCommand)
	if command == "" {
		return fallback, nil
	}

	out, err := p.runner.Run(ctx, command, episodeEnv(sub, ep, fetched.Path))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.WarnWithContext(logger, "classify command failed", "classify_failed",
			logging.String("command", command),
			logging.Error(err),
			logging.String(logging.FieldImpact, "using the type reported by the server or feed"),
		)
		return fallback, nil
	}
	if classified := firstMediaType(out); classified != "" {
		return classified, nil
	}
	return fallback, nil
}

// firstMediaType reads the first line of classifier output as a media type,
// dropping parameters such as charset.
func firstMediaType(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(line); err == nil {
		return parsed
	}
	head, _, _ := strings.Cut(line, ";")
	return strings.ToLower(strings.TrimSpace(head))
}

func (p *Pipeline) postProcess(ctx context.Context, logger *slog.Logger, settings config.Settings, sub store.Subscription, ep store.Episode, final, mimeType string) error {
	env := episodeEnv(sub, ep, final)

	command := strings.TrimSpace(settings.PostProcessCommand)
	if command != "" && (settings.PostProcessAll() || slices.Contains(settings.PostProcessTypeList(), mimeType)) {
		if _, err := p.runner.Run(ctx, command, env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.WarnWithContext(logger, "post-process command failed", "postprocess_failed",
				logging.String("command", command),
				logging.String("path", final),
				logging.Error(err),
				logging.String(logging.FieldImpact, "episode is kept unprocessed"),
			)
		}
	}

	if hook := strings.TrimSpace(settings.PostHook); hook != "" {
		if _, err := p.runner.Run(ctx, shellQuote(hook)+` "$EPFILENAME"`, env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.WarnWithContext(logger, "post hook failed", "post_hook_failed",
				logging.String("hook", hook),
				logging.String("path", final),
				logging.Error(err),
			)
		}
	}
	return nil
}

// cleanScratch removes scratch files that no Pending episode owns. It skips
// cleanup entirely when the pending set cannot be read.
func (p *Pipeline) cleanScratch(ctx context.Context) int {
	subs, err := p.repo.ListSubscriptions(ctx, nil)
	if err != nil {
		p.warnCleanupSkipped(err)
		return 0
	}
	var pending []string
	for _, sub := range subs {
		episodes, err := p.repo.ListEpisodes(ctx, sub.ID, nil)
		if err != nil {
			p.warnCleanupSkipped(err)
			return 0
		}
		for _, ep := range episodes {
			if ep.Status == store.StatusPending {
				pending = append(pending, ep.EnclosureURL)
			}
		}
	}
	result := staging.CleanScratch(ctx, p.scratchDir, pending, p.logger)
	return len(result.Removed)
}

func (p *Pipeline) warnCleanupSkipped(err error) {
	logging.WarnWithContext(p.logger, "scratch cleanup skipped", "scratch_cleanup_skipped",
		logging.Error(err),
		logging.String(logging.FieldImpact, "stale partial downloads stay on disk"),
	)
}

func countEnabled(subs []store.Subscription) int {
	n := 0
	for _, sub := range subs {
		if sub.Enabled() {
			n++
		}
	}
	return n
}
