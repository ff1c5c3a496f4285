// Package probe implements the bounded-concurrency fetch engine: a shared
// concurrency gate, a per-URL retry loop driven by tagged attempt outcomes,
// and ordered aggregation of one Result per input URL.
package probe
