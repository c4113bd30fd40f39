// Package protocol implements request correlation for the toolmesh session
// engine: many concurrent logical calls multiplexed over one full-duplex
// channel, with a single reader goroutine dispatching responses to waiters
// by monotonically increasing request id.
package protocol
