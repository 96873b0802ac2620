// Package model defines the Invoker abstraction between the orchestrator and
// concrete model providers, plus a deterministic ScriptedInvoker for tests.
// Vendor bindings live in the subpackages anthropic and openai.
package model
