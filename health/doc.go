// Package health reports whether the menu cache can serve.
//
// A Checker reports one component: the markup store (CacheChecker), the
// circuit breaker in front of a remote store (BreakerChecker) or the
// settings store (SettingsChecker). An Aggregator runs them concurrently
// under a deadline and folds the results into one Status: the worst wins.
//
//	agg := health.NewAggregator(2 * time.Second)
//	agg.Register(health.NewCacheChecker("cache", store, "health.probe"))
//	agg.Register(health.NewSettingsChecker("settings", settingsStore))
//	health.Mount(router, agg)
//
// Mount serves /healthz (liveness), /readyz (503 while unhealthy), /health
// (JSON detail for every check) and /health/{check}.
package health
