// Package ratelimit throttles requests to the departures API.
//
// TokenBucket refills continuously at a fixed rate and allows short bursts
// up to its capacity. Wait honours context cancellation so a shutdown never
// blocks on the limiter.
//
//	limiter := ratelimit.NewTokenBucket(5, 5) // 5 req/s, burst of 5
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
