// Package agent contains the model- and tool-driven steps of the account
// planning pipeline. Each step is a small struct wired with functional
// options and operates on a *core.Session handed to it by the engine:
//
//  1. Planner: scope clarification, workplan drafting and confirmation parsing
//  2. Router: workplan to capped, deduplicated research tasks
//  3. Researcher: sequential execution of tasks against the tool registry
//  4. Synthesizer, Analyst and Regenerator: section writing, plan assembly
//     and single-section rewrites
//
// Steps never change the session stage except the Regenerator, which owns
// the reviewing/editing round trip. Prompts live in prompts.yaml and are
// rendered as text templates.
package agent
