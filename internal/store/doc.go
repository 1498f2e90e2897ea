// Package store persists subscriptions and their episodes in SQLite.
//
// Open connects to the database and upgrades it to CurrentSchemaVersion. The
// version marker lives in the single-row schemaver table. Migrations are an
// ordered list; each one runs in its own transaction together with the marker
// update, so a crash never leaves the marker ahead of the layout. A step may
// carry a side effect that runs after its commit. Stores written by a newer
// release (marker above CurrentSchemaVersion) are refused with
// ErrUnrecognizedSchemaVersion.
//
// The table and column names (podcasts.castid, episodes.epurl, ...) are kept
// from the legacy layout so existing databases upgrade in place.
//
// Repository methods on Store commit each logical operation as one unit.
// Nothing holds a transaction across a whole feed update or download batch.
package store
