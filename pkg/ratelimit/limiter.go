// Package ratelimit provides the external rate-limiting collaborator the
// pipeline driver consults before admitting a request. Two backends are
// provided: an in-process token bucket for single-instance deployments and
// a Redis-backed one (Lua script, atomic) for gateways running behind a
// shared limiter across replicas.
package ratelimit

import "context"

// Policy bounds one actor's request rate (per user, per tenant, or
// globally, depending on how the caller keys its Allow calls).
type Policy struct {
	RequestsPerMinute int
	Burst             int
}

// Limiter decides whether a request identified by actorID may proceed
// right now, consuming cost tokens if so.
type Limiter interface {
	Allow(ctx context.Context, actorID string, policy Policy, cost int) (bool, error)
}
