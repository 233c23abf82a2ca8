// Package analysis holds the writing-process reducers: time on task,
// attention, typing speed and comment tracking.
//
// Each reducer is pure. State for one user arrives already partitioned by
// the stream package, so the nested maps here start at the document id.
package analysis
