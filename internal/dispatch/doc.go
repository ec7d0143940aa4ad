// Package dispatch delivers a channel send to the handlers eligible for one tenant.
//
// Send walks the channel's handlers in registration order. Each handler's origin
// is resolved to its owning component; handlers without an owner are skipped.
// A handler is eligible when its owner is core or enabled for the tenant, and the
// owner has no compatibility errors. Eligible handlers run synchronously on the
// caller's goroutine and their responses are collected in order.
//
// Key behaviours:
//   - A nil or id-less sender is rejected with ErrInvalidSender before any work
//   - Channels with no handlers return an empty result without consulting the
//     tenant provider, the resolver, the tracer or the recorder
//   - The tenant provider is consulted once per send
//   - The first handler error stops the send; the error is returned unchanged
//     together with the responses gathered so far
//
// Error handling:
//   - Provider failure → wrapped error, no handler runs
//   - Unowned or incompatible handler → skipped, debug log only
//   - Handler error → returned verbatim with the partial result
//   - Handler panic → not recovered
package dispatch
