// Package reactor provides the goroutine-backed worker pool (Group/Loop)
// that gives each connection serial execution affinity for its lifetime,
// plus the Scheduler used for per-request deadlines and TLS bootstrap
// cache idle-eviction.
package reactor
