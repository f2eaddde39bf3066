// Package task runs analysis requests asynchronously. Each submitted task
// gets its own step loop that appends partial results, persists a snapshot
// after every transition and honors cancellation at step boundaries. The
// Registry indexes resident tasks and falls back to the snapshot store for
// tasks that have left memory; the Reaper bounds how long tasks stay resident.
package task
