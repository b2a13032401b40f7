// Package microstate extracts EEG microstates from multichannel recordings.
//
// A recording is a Matrix of samples × electrodes. Global Field Power (GFP)
// is computed per sample, GFP peaks (or supra-threshold runs) select the
// topographies that are clustered with a correlation-based k-means into a
// small set of canonical maps. Canonical maps from many recordings are
// pooled and clustered again, this time with Euclidean k-means, into group
// maps. Every sample is then labelled with its best matching map and the
// label sequence is summarised as coverage, occurrence and duration
// metrics.
//
// The two clustering stages deliberately use different distances: spatial
// correlation per recording, Euclidean distance across recordings.
package microstate
