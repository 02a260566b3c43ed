/*
Package resilience provides a circuit breaker for remote capability
providers.

Form integrations answer builder requests by calling out to a remote
service. When that service is down every formFields request would otherwise
wait for its own timeout; the breaker makes them fail fast so the builder
gets a rejection right away.

	breaker := resilience.New("forms", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})

	fields, err := resilience.Do(ctx, breaker, func(ctx context.Context) ([]protocol.FormFieldsOption, error) {
		return client.Fields(ctx)
	})

States:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open
*/
package resilience
