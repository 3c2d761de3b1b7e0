// Package main hosts the docgate CLI.
//
// The Cobra command tree runs the gateway in the foreground (serve), talks to
// a running gateway over HTTP (convert, formats, status), and checks the host
// before a first start (doctor, config). Conversion logic lives in the
// internal packages; commands here only parse flags and render results.
package main
