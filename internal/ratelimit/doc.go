// Package ratelimit throttles job submissions per client with token buckets
// from golang.org/x/time/rate.
package ratelimit
