// Package logs reads castkeep's log file for the `castkeep log` command.
//
// Tail prints the last lines of the file and, in follow mode, keeps polling
// for appended lines with bounded memory. When the file shrinks because the
// rotator started a fresh one, following resumes from its beginning.
package logs
