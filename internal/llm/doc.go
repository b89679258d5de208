// Package llm provides the external classifier: a language model that sorts
// a whole income or expense document into category buckets when the local
// rules are not confident. Calls are rate limited, retried on transient
// failures and guarded by a circuit breaker.
package llm
