package store

import (
	"context"
	"fmt"
)

// Healthcheck returns a closure for health endpoints. It succeeds when the
// client is connected and Redis answers PING, and also when the client is in
// fallback, since the map is always available. Before the first connect it
// reports the state without dialing.
func Healthcheck(c *Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if c == nil {
			return ErrHealthcheckFailed
		}
		switch s := c.State(); s {
		case StateFallback:
			return nil
		case StateConnected:
			if !c.HealthCheck(ctx) {
				return fmt.Errorf("%w: redis did not answer PING", ErrHealthcheckFailed)
			}
			return nil
		default:
			return fmt.Errorf("%w: state %s", ErrHealthcheckFailed, s)
		}
	}
}
