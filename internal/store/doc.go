// Package store defines the persistence boundary for run progress. The
// worker ships the in-memory implementation; this package must not import
// database drivers or concrete clients.
package store
