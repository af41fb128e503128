// Package pipeline implements the single-writer state owner: one goroutine
// consumes a bounded command channel, mutates the notification store
// exclusively from that goroutine, and emits D-Bus signals and surface
// events as a side effect. No other package is permitted to mutate the
// store directly.
package pipeline
