// Package server composes and runs the identity process boundary.
//
// It hosts the HTTP API backed by a single SQLite store so authentication
// and authorization decisions are made from one source of truth.
package server
