// Package ratelimit provides per-target request limiting for platform API
// clients.
package ratelimit
