// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Tolerate providers that wrap JSON answers in prose or code fences (DecodeJSON)
//   - Facilitate lightweight mocking for tests and offline runs (MockModel)
//
// Providers (OpenAI, Anthropic, Gemini) implement the Model interface from
// this package so the agents remain decoupled from vendor SDKs.
package model
