// Package stderr diverts file descriptor 2 while the viewer owns the
// terminal, so stray writes become log lines instead of screen garbage.
package stderr

const bufferedLines = 100
