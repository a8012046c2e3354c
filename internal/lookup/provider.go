// Package lookup defines the external data-source collaborator used by the
// dispatcher. Sources are modeled as a narrow capability: given a query type
// and a normalized query, return a payload or a typed failure. The package
// also owns query normalization, since cache keys and audit rows must agree
// on one canonical form.
package lookup

import (
	"context"
	"errors"
)

// Known query types. Each maps to an endpoint template on the HTTP provider;
// the set is extensible through configuration.
const (
	TypePhone    = "phone"
	TypeEmail    = "email"
	TypeUPI      = "upi"
	TypePAN      = "pan"
	TypeIP       = "ip"
	TypeVehicle  = "vehicle"
	TypeIFSC     = "ifsc"
	TypeUsername = "username"
)

// ErrNotFound indicates the source answered authoritatively that no data
// exists for the query. Cacheable as a negative result.
var ErrNotFound = errors.New("no information found")

// ErrUnavailable indicates a transient source failure (network error,
// non-2xx status, malformed body). Eligible for bounded retry.
var ErrUnavailable = errors.New("source unavailable")

// ErrUnknownType indicates no source is configured for the query type.
var ErrUnknownType = errors.New("unknown query type")

// Provider is the external lookup capability. Implementations must be safe
// for concurrent use and honor ctx for cancellation and deadlines.
type Provider interface {
	// Lookup fetches the payload for a normalized query. It returns
	// ErrNotFound for authoritative misses, ErrUnknownType for unsupported
	// types, and errors wrapping ErrUnavailable for transient failures.
	Lookup(ctx context.Context, qtype, query string) (string, error)

	// Supports reports whether the provider can serve the query type.
	Supports(qtype string) bool
}
