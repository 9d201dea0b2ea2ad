// Package auth authenticates requests and applies the authorization policy.
//
// Authenticators turn request credentials into an Identity:
//
//   - ClientCert: a TLS client certificate verified against the configured CA
//   - Bearer: an HMAC-signed JWT in the Authorization header
//
// Policy decides whether an identity (or its absence) may reach a path.
// Paths in the anonymous allow-list bypass authorization; everything else
// follows the fallback policy.
package auth
