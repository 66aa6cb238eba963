// Package harness runs sync scenarios against the real binder, writer and
// migrator with a fake clock and an in-memory remote store.
//
// A scenario is a YAML file:
//
//	name: migrate_on_login
//	description: Anonymous progress follows the user into their account
//	setup:
//	  cache:
//	    - {scope: anon, path: quiz, doc: {score: 5}}
//	steps:
//	  - bind: {path: quiz}
//	  - login: u1
//	assertions:
//	  - {type: state, query: remote.u1.quiz.score, equals: 5}
//	  - {type: state, query: cache.anon.quiz, absent: true}
//	  - {type: trace_count, event: load, path: quiz, count: 2}
//
// Steps run in order. After each step the harness waits until every bound
// document has processed its pending events, so the trace is deterministic:
// the same scenario always yields the same events in the same order.
//
// # Trace
//
// The trace records every step and its observable effects:
//
//   - step events (bind, write, advance, login, logout, fail_remote, flush)
//   - load: a document delivered to a binding's onLoad
//   - remote_get, remote_merge: calls reaching the remote store, with their
//     outcome
//
// # Assertions
//
// state assertions evaluate a gjson query against the final state:
//
//	{
//	  "cache":  {"<scope>": {"<path>": <document>}},
//	  "remote": {"<uid>":   {"<path>": <document>}},
//	  "loads":  {"<path>":  [<document>, ...]}
//	}
//
// trace_count and trace_order check the trace.
//
// # Golden files
//
// RunWithGolden compares the trace with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
