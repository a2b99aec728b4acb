// Package crawler defines the core types and interfaces shared by the
// fetch, extract, and report subsystems: the per-URL outcome record, the
// run-lifetime counters, URL canonicalization, and the retry policy
// applied to transient fetch failures.
package crawler
