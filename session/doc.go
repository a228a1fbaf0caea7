// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. Keeping only implementations here prevents
// higher level packages (agents, engine) from depending on concrete storage.
//
// InMemoryStore evicts idle sessions after a TTL and forgets everything on
// restart. RedisStore keeps the same contract across process restarts; the
// wiring layer decides which one to instantiate.
package session
