// Package artifact stores rendered exports of account plans.
//
// Exports are addressed by session id and a file name such as
// "plan-v3.html". Because the plan version is part of the name, a cached
// export never goes stale: a regenerated plan simply renders under a new
// name. Two backends exist, an in‑process map for tests and single process
// deployments and a Redis hash per session for deployments that already run
// Redis for sessions.
package artifact
