// Package ratelimit implements the per-sender sliding-window notification
// limiter: 60 accepted notifications per 60-second window per app_name,
// with a bounded tracking table to prevent memory exhaustion from a flood
// of distinct sender names.
package ratelimit
