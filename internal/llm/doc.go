// Package llm provides language model clients for bill extraction, routing,
// splitting and transaction normalization. It supports OpenAI-compatible chat
// APIs (OpenAI, ASI1) and Google's Gemini, with retry logic, rate limiting,
// per-call timeouts and helpers for decoding untrusted JSON replies.
package llm
