// Package ratelimit implements per-client fixed-window admission control.
//
// Each key gets a window of Window length that admits Limit requests.
// A window starts with the first request from its key and resets once
// Window has elapsed; there is no queueing. Because windows are fixed, a
// client can send up to 2 x Limit requests across a window boundary.
//
// The key space is bounded by an LRU: when MaxKeys keys are tracked, the
// least recently seen key is evicted and starts a fresh window if it
// returns.
package ratelimit
