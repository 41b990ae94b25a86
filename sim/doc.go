// Package sim estimates, by repeated random trials, how often independently
// chosen binary gene-expression vectors collide across a population of cells,
// and how many cells express none of the candidate genes.
//
// # Reading Guide
//
// Start with these files to understand one run:
//   - trial.go: TrialMatrix and its seeded generator (one row per cell)
//   - counter.go: exact duplicate-row and all-false-row counting
//   - histogram.go: Histogram, Accumulator and the Result handed to callers
//   - simulator.go: the sequential run loop (generate, count, record)
//
// # Architecture
//
// The sim package defines the data model, the Backend interface and the
// in-process implementation; other implementations live in sub-packages:
//   - sim/parallel/: chunked, cancellable, multi-worker continuous runs
//   - sim/native/: a dimension-specialized shared library loaded at runtime
//
// Backends are chosen once, at configuration time, by SelectBackend. Every
// backend yields a Histogram of length n_cells whose entries sum to the
// number of trials, so results from different backends merge freely.
//
// # Determinism
//
// A finite run draws every matrix from one math/rand stream seeded with the
// master seed. Continuous-mode chunk i uses ChunkSeed(seed, i), so a chunk's
// histogram depends only on its index, never on worker scheduling.
package sim
