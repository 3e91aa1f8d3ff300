// Package audit persists decision events for later inspection.
//
// The orchestrator emits one Event per evaluation through its Sink.
// This package provides a SQLite-backed store for those events and an
// asynchronous Recorder that implements the Sink interface without
// blocking the evaluation path: events are buffered on a channel and
// written by a background worker. When the buffer is full, events are
// dropped and counted rather than stalling decisions.
//
// The store answers the questions an operator asks after the fact: what
// did policy P decide for agent A, when, and why. Queries filter by
// policy, agent, verdict, and time range.
package audit
