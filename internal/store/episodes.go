package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const episodeColumns = "castid, episodeid, title, epurl, enctype, epguid, eplength, status, epfirstattempt, eplastattempt, epfailedattempts"

// identityQuery finds the stored episodes a feed candidate refers to: rows
// with a GUID match on GUID, rows without one match on enclosure URL.
const identityQuery = `SELECT episodeid FROM episodes
WHERE castid = ?
  AND ((COALESCE(epguid, '') <> '' AND epguid = ?)
    OR (COALESCE(epguid, '') = '' AND epurl = ?))`

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		ep           Episode
		mimeType     sql.NullString
		guid         sql.NullString
		size         sql.NullInt64
		status       string
		firstAttempt sql.NullInt64
		lastAttempt  sql.NullInt64
		failures     sql.NullInt64
	)
	if err := scanner.Scan(
		&ep.SubscriptionID,
		&ep.Seq,
		&ep.Title,
		&ep.EnclosureURL,
		&mimeType,
		&guid,
		&size,
		&status,
		&firstAttempt,
		&lastAttempt,
		&failures,
	); err != nil {
		return nil, err
	}
	decoded, err := episodeStatusFromDB(status)
	if err != nil {
		return nil, fmt.Errorf("episode %d.%d: %w", ep.SubscriptionID, ep.Seq, err)
	}
	ep.MimeType = mimeType.String
	ep.GUID = guid.String
	ep.SizeBytes = size.Int64
	ep.Status = decoded
	ep.FirstAttempt = timeFromNull(firstAttempt)
	ep.LastAttempt = timeFromNull(lastAttempt)
	ep.Failures = int(failures.Int64)
	return &ep, nil
}

// ListEpisodes returns the selected episodes of one subscription ordered by
// sequence number. An empty selection returns every episode.
func (s *Store) ListEpisodes(ctx context.Context, subscriptionID int64, seqs []int64) ([]Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE castid = ?`
	args := []any{subscriptionID}
	if len(seqs) > 0 {
		unique := dedupeIDs(seqs)
		query += ` AND episodeid IN (` + makePlaceholders(len(unique)) + `)`
		for _, seq := range unique {
			args = append(args, seq)
		}
	}
	query += ` ORDER BY episodeid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, *ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return episodes, nil
}

// CountEpisodes returns total and pending episode counts keyed by
// subscription id. Subscriptions without episodes are absent.
func (s *Store) CountEpisodes(ctx context.Context) (map[int64]EpisodeCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT castid, COUNT(1), SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
         FROM episodes GROUP BY castid`,
		string(StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("count episodes: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]EpisodeCounts)
	for rows.Next() {
		var (
			id      int64
			c       EpisodeCounts
			pending sql.NullInt64
		)
		if err := rows.Scan(&id, &c.Total, &pending); err != nil {
			return nil, fmt.Errorf("scan episode counts: %w", err)
		}
		c.Pending = int(pending.Int64)
		counts[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episode counts: %w", err)
	}
	return counts, nil
}

// UpsertFromFeed records a feed candidate for a subscription.
//
// A candidate matching no stored episode is inserted as Pending with the next
// sequence number. A candidate matching exactly one episode refreshes that
// episode's title, URL, GUID, type and size; status and attempt counters are
// left alone. More than one match, or a match that would collide with a
// different episode's URL or GUID, yields ErrAmbiguousEpisodeMatch and
// changes nothing.
func (s *Store) UpsertFromFeed(ctx context.Context, subscriptionID int64, candidate Episode) (UpsertOutcome, error) {
	candidate.EnclosureURL = strings.TrimSpace(candidate.EnclosureURL)
	if candidate.EnclosureURL == "" {
		return 0, fmt.Errorf("upsert episode: empty enclosure url")
	}

	var outcome UpsertOutcome
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		matches, err := matchingSeqs(ctx, tx, subscriptionID, candidate)
		if err != nil {
			return err
		}

		switch len(matches) {
		case 0:
			var maxSeq sql.NullInt64
			if err := tx.QueryRowContext(ctx, "SELECT MAX(episodeid) FROM episodes WHERE castid = ?", subscriptionID).Scan(&maxSeq); err != nil {
				return fmt.Errorf("next episode id: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO episodes (castid, episodeid, title, epurl, epguid, enctype, status, eplength)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				subscriptionID,
				maxSeq.Int64+1,
				candidate.Title,
				candidate.EnclosureURL,
				nullableString(candidate.GUID),
				candidate.MimeType,
				string(StatusPending),
				candidate.SizeBytes,
			)
			if err != nil {
				return upsertError("insert", candidate, err)
			}
			outcome = Inserted
		case 1:
			_, err = tx.ExecContext(ctx,
				`UPDATE episodes SET title = ?, epurl = ?, epguid = ?, enctype = ?, eplength = ?
                 WHERE castid = ? AND episodeid = ?`,
				candidate.Title,
				candidate.EnclosureURL,
				nullableString(candidate.GUID),
				candidate.MimeType,
				candidate.SizeBytes,
				subscriptionID,
				matches[0],
			)
			if err != nil {
				return upsertError("update", candidate, err)
			}
			outcome = Updated
		default:
			return fmt.Errorf("%w: %d episodes match guid %q / url %q", ErrAmbiguousEpisodeMatch, len(matches), candidate.GUID, candidate.EnclosureURL)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

func matchingSeqs(ctx context.Context, tx *sql.Tx, subscriptionID int64, candidate Episode) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, identityQuery, subscriptionID, candidate.GUID, candidate.EnclosureURL)
	if err != nil {
		return nil, fmt.Errorf("match episode: %w", err)
	}
	defer rows.Close()

	var seqs []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, fmt.Errorf("scan episode match: %w", err)
		}
		seqs = append(seqs, seq)
	}
	return seqs, rows.Err()
}

func upsertError(op string, candidate Episode, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s would collide with another episode (guid %q, url %q)", ErrAmbiguousEpisodeMatch, op, candidate.GUID, candidate.EnclosureURL)
	}
	return fmt.Errorf("%s episode: %w", op, err)
}

// UpdateEpisode writes every mutable field of ep. It returns
// ErrEpisodeNotFound unless exactly one row was updated.
func (s *Store) UpdateEpisode(ctx context.Context, ep Episode) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE episodes
         SET title = ?, epurl = ?, epguid = ?, enctype = ?, status = ?, eplength = ?,
             epfirstattempt = ?, eplastattempt = ?, epfailedattempts = ?
         WHERE castid = ? AND episodeid = ?`,
		ep.Title,
		ep.EnclosureURL,
		nullableString(ep.GUID),
		ep.MimeType,
		string(ep.Status),
		ep.SizeBytes,
		nullableTime(ep.FirstAttempt),
		nullableTime(ep.LastAttempt),
		ep.Failures,
		ep.SubscriptionID,
		ep.Seq,
	)
	if err != nil {
		return fmt.Errorf("update episode %d.%d: %w", ep.SubscriptionID, ep.Seq, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update episode rows affected: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("%w: %d.%d", ErrEpisodeNotFound, ep.SubscriptionID, ep.Seq)
	}
	return nil
}
