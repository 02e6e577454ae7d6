// Package main provides the entry point for the leakgate CLI.
//
// Leakgate probes a paywalled page through several independent
// channels and reports any route that exposes the full article text.
//
// Usage:
//
//	leakgate probe <url>
//	leakgate serve
//	leakgate history list <url>
//
// See --help for all available options.
package main

// main is the entry point for leakgate.
func main() {
	Execute()
}
