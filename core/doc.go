// Package core provides the domain types and invariants of the account
// planning pipeline:
//
//   - Stage (the conversation state machine and its legal transitions)
//   - Section and Channel (closed enumerations with wire identifiers)
//   - Scope (the brief) and Session (the unit of ownership)
//   - SearchTask, ActivityEvent and Bundle (a research sweep and its evidence)
//   - AccountPlan (the versioned strategy document)
//
// The package keeps persistence and orchestration out of scope and exposes
// the small SessionStore interface so backends can be swapped.
package core
