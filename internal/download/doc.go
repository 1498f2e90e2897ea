// Package download moves Pending episodes from their enclosure URLs into the
// library.
//
// Each episode is fetched into the scratch directory, classified with the
// configured command, named from the naming pattern, placed without
// overwriting anything already in the library, and optionally
// post-processed. Failures count against the episode's failure budget;
// cancellation stops the batch without touching the episode in flight.
package download
