// Package scheduler runs a fixed set of named periodic tasks from a single
// cooperative loop.
//
// This replaces an external worker fleet: the loop wakes on a short tick,
// walks the registry in registration order, and synchronously invokes every
// task whose interval has elapsed since its last run. Tasks never overlap,
// neither with themselves nor with each other, which keeps the failure model
// simple and serializes access to shared external resources.
//
// A task's lastRun is advanced at invocation start, before the action runs,
// so a slow or failing action is retried at its next natural interval
// instead of on every tick.
package scheduler
