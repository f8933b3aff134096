// Package secrets blocks credential material from entering the knowledge
// store. A fixed set of regex rules is run against an entry's content,
// summary, and evidence URIs before anything is persisted.
//
// The scanner is a best-effort guard, not a guarantee: false negatives
// are acceptable, false positives can be suppressed through a TOML
// allowlist. Scan errors name the offending field and rule but never
// echo the matched text, so the error itself cannot leak the secret.
package secrets
