package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const subscriptionColumns = "castid, castname, feedurl, pcenabled, lastupdate, lastattempt, failedattempts"

func scanSubscription(scanner interface{ Scan(dest ...any) error }) (*Subscription, error) {
	var (
		sub         Subscription
		title       sql.NullString
		state       int64
		lastSuccess sql.NullInt64
		lastAttempt sql.NullInt64
		failures    sql.NullInt64
	)
	if err := scanner.Scan(&sub.ID, &title, &sub.SourceURL, &state, &lastSuccess, &lastAttempt, &failures); err != nil {
		return nil, err
	}
	decoded, err := enabledStateFromDB(state)
	if err != nil {
		return nil, fmt.Errorf("subscription %d: %w", sub.ID, err)
	}
	sub.Title = title.String
	sub.State = decoded
	sub.LastSuccess = timeFromNull(lastSuccess)
	sub.LastAttempt = timeFromNull(lastAttempt)
	sub.Failures = int(failures.Int64)
	return &sub, nil
}

// AddSubscription subscribes to sourceURL. The new subscription is enabled,
// has no failures, and has never been fetched.
func (s *Store) AddSubscription(ctx context.Context, sourceURL string) (*Subscription, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, fmt.Errorf("add subscription: empty feed url")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM podcasts WHERE feedurl = ?", sourceURL).Scan(&existing); err != nil {
			return fmt.Errorf("check existing subscription: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateSubscription, sourceURL)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO podcasts (castname, feedurl, pcenabled, failedattempts) VALUES ('', ?, ?, 0)`,
			sourceURL, int(Enabled),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateSubscription, sourceURL)
			}
			return fmt.Errorf("insert subscription: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetSubscription(ctx, id)
}

// GetSubscription fetches one subscription. It returns nil, nil when id does
// not exist.
func (s *Store) GetSubscription(ctx context.Context, id int64) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM podcasts WHERE castid = ?`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns the selected subscriptions ordered by id. An
// empty selection returns every subscription. Repeated ids are collapsed and
// ids that do not exist are left out.
func (s *Store) ListSubscriptions(ctx context.Context, ids []int64) ([]Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM podcasts`
	var args []any
	if len(ids) > 0 {
		unique := dedupeIDs(ids)
		query += ` WHERE castid IN (` + makePlaceholders(len(unique)) + `)`
		for _, id := range unique {
			args = append(args, id)
		}
	}
	query += ` ORDER BY castid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// UpdateSubscription writes every mutable field of sub. Updating a
// subscription that no longer exists is a no-op.
func (s *Store) UpdateSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE podcasts
         SET castname = ?, feedurl = ?, pcenabled = ?, lastupdate = ?, lastattempt = ?, failedattempts = ?
         WHERE castid = ?`,
		sub.Title,
		sub.SourceURL,
		int(sub.State),
		nullableTime(sub.LastSuccess),
		nullableTime(sub.LastAttempt),
		sub.Failures,
		sub.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSubscription, sub.SourceURL)
		}
		return fmt.Errorf("update subscription %d: %w", sub.ID, err)
	}
	return nil
}

// RemoveSubscription deletes a subscription and all of its episodes together.
func (s *Store) RemoveSubscription(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM episodes WHERE castid = ?", id); err != nil {
			return fmt.Errorf("delete episodes of %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM podcasts WHERE castid = ?", id); err != nil {
			return fmt.Errorf("delete subscription %d: %w", id, err)
		}
		return nil
	})
}
