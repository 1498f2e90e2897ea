// Package preflight provides readiness checks for the paths, commands, and
// database castkeep depends on.
//
// The CLI "castkeep status" command renders every check. Commands that
// download run RunAll first and stop before touching the network when a
// required directory is unusable.
package preflight
