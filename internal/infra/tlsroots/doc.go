// Package tlsroots loads trusted CA certificates.
//
// statichost uses it to build the client CA pool for mutual TLS: the pool
// verifies certificates presented by clients when hosting.client_auth is
// configured.
package tlsroots
