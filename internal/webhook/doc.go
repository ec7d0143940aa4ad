// Package webhook receives signed HTTP callbacks and dispatches their bodies
// on a channel for a fixed tenant.
//
// Each endpoint maps a POST path to a (tenant, channel) pair and a shared
// secret. The body must carry an HMAC-SHA256 signature in the configured
// header, either as plain hex or as "sha256=<hex>". Verification uses a
// constant-time comparison and failures always answer a generic 403.
//
// Configuration:
//
//	webhooks:
//	  listen: "127.0.0.1:8081"
//	  endpoints:
//	    - path: /hooks/acme/order-paid
//	      tenant: acme
//	      channel: order-paid
//	      secret: ${ACME_WEBHOOK_SECRET}
//	      signature_header: X-Signature
//	      max_body_size: 64KB
//
// Responses:
//
//   - 200 OK: dispatched; body lists the invoked handler ids
//   - 400 Bad Request: the body is not a valid payload for the channel
//   - 403 Forbidden: missing or invalid signature
//   - 413 Payload Too Large: body exceeds max_body_size
//   - 502 Bad Gateway: the tenant is unknown or a handler failed
package webhook
