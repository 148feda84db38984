// Package main provides the entry point for rvsim, a cycle-accurate
// simulator of a five-stage RV32IM pipeline with a unified cache.
package main

import "github.com/tebeka/atexit"

func main() {
	Execute()
	atexit.Exit(0)
}
