// Package bart is a client for the BART legacy real-time API.
//
// Two read-only calls are used: the station list (stn.aspx?cmd=stns) and the
// estimated departures for one origin station (etd.aspx?cmd=etd). Both are
// keyed by an API key and return JSON when json=y is set.
//
// Every request passes through a token bucket limiter and is retried with
// backoff on transport failures, 429 and 5xx responses. Failures are
// returned as network errors from pkg/errors carrying the HTTP status.
//
//	client := bart.NewClient(cfg.API, limiter, retryCfg, log)
//	stations, err := client.ExtractStations(ctx)
//	raw, err := client.ExtractDepartures(ctx, "EMBR")
package bart
