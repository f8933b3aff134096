// Package knowledge defines the core domain model for the knowd store:
// entries, evidence, provenance, scopes, query filters, validation, and
// the closed error taxonomy shared by every component.
//
// An Entry is one unit of durable knowledge recorded by an agent: a
// decision, an observation, or a learning, carrying a confidence score
// and at least one piece of typed evidence. Entries are never deleted;
// they are retired by superseding or deprecating them.
//
// The package is pure: it performs no I/O and holds no state. Storage,
// querying, and statistics live in their own packages and depend on the
// types defined here.
package knowledge
