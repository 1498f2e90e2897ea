// Package main hosts the castkeep CLI entrypoint and command graph.
//
// Each invocation loads the configuration once, tags its logger with a run
// id, and opens the SQLite store. Commands that change the store hold the
// process lock for their whole run, so an update started from cron cannot
// interleave with a manual setstatus.
//
// The feed reconciler and download pipeline live in internal packages; the
// commands here select subscriptions, wire collaborators, and render tables.
package main
