// Package llm provides the language model boundary for dispute classification
// and query translation. It supports OpenAI and Anthropic providers with
// retry logic, rate limiting, and response caching.
package llm
