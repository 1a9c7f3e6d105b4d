// Package parallel runs independent task operations with bounded
// concurrency.
package parallel
