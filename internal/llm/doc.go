// Package llm defines the completion and embedding abstractions the agent
// uses to reach language-model endpoints, together with concrete clients for
// OpenAI-compatible chat-completion APIs.
package llm
