/*
Package monitoring collects Prometheus metrics for the bridge server.

Metrics live on a private registry. A Metrics value doubles as the session
observer, so handshakes, accepted messages, malformed input, capability
outcomes and saves are counted without the domain packages importing
Prometheus.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	host := bridge.NewHost(window, bridge.Options{Observer: metrics})

	timer := monitoring.NewTimer(metrics, "forms", "fields")
	// ... call the provider ...
	timer.Stop("success")
*/
package monitoring
