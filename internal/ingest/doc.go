// Package ingest turns raw client payloads into reduced projections.
//
// A Service owns the reducer registrations and the state store. Each client
// connection opens a Session bound to one resolved identity; the session
// stamps server time, runs the pipeline and fans the merged projection out to
// live dashboards.
package ingest
