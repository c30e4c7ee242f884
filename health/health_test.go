package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/health"
	"github.com/theo-gk/wordpress-menu-caching/resilience"
	"github.com/theo-gk/wordpress-menu-caching/settings"
)

var errDown = errors.New("down")

func static(name string, r health.Result) health.Checker {
	return health.NewCheckerFunc(name, func(context.Context) health.Result { return r })
}

type downCache struct{ cache.Cache }

func (downCache) Set(context.Context, string, []byte, time.Duration) error { return errDown }

type downSettings struct{ settings.Store }

func (downSettings) LoadExcluded(context.Context) (settings.ExcludedSet, error) {
	return settings.ExcludedSet{}, errDown
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]health.Result
		want    health.Status
	}{
		{"empty", nil, health.StatusHealthy},
		{"all healthy", map[string]health.Result{"a": health.Healthy("")}, health.StatusHealthy},
		{"one degraded", map[string]health.Result{"a": health.Healthy(""), "b": health.Degraded("")}, health.StatusDegraded},
		{"unhealthy wins", map[string]health.Result{"a": health.Degraded(""), "b": health.Unhealthy("", errDown)}, health.StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := health.OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	if got := health.StatusDegraded.Worst(health.StatusHealthy); got != health.StatusDegraded {
		t.Errorf("Worst() = %s", got)
	}
	if got := health.Status(9).String(); got != "unknown" {
		t.Errorf("String() = %q", got)
	}
	b, err := json.Marshal(map[string]health.Status{"s": health.StatusUnhealthy})
	if err != nil || string(b) != `{"s":"unhealthy"}` {
		t.Errorf("Marshal() = %s, %v", b, err)
	}
}

func TestResult_WithDetails(t *testing.T) {
	r := health.Healthy("ok").WithDetails(map[string]any{"a": 1}).WithDetails(map[string]any{"b": 2})
	if len(r.Details) != 2 {
		t.Errorf("Details = %v, want both keys", r.Details)
	}
}

func TestAggregator(t *testing.T) {
	agg := health.NewAggregator(0)
	agg.Register(static("cache", health.Healthy("ok")))
	agg.Register(static("settings", health.Degraded("slow")))
	agg.Register(static("extra", health.Healthy("ok")))
	agg.Unregister("extra")

	if got := agg.CheckerNames(); len(got) != 2 || got[0] != "cache" || got[1] != "settings" {
		t.Errorf("CheckerNames() = %v", got)
	}

	results := agg.CheckAll(context.Background())
	if len(results) != 2 || results["settings"].Status != health.StatusDegraded {
		t.Errorf("CheckAll() = %+v", results)
	}

	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, health.ErrCheckerNotFound) {
		t.Errorf("Check(missing) error = %v", err)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := health.NewAggregator(20 * time.Millisecond)
	agg.Register(health.NewCheckerFunc("stuck", func(ctx context.Context) health.Result {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return health.Healthy("late")
	}))

	r := agg.CheckAll(context.Background())["stuck"]
	if r.Status != health.StatusUnhealthy || !errors.Is(r.Error, health.ErrCheckTimeout) {
		t.Errorf("stuck check = %+v, want timeout", r)
	}
}

func TestCacheChecker(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache()

	r := health.NewCacheChecker("cache", store, "health.probe").Check(ctx)
	if r.Status != health.StatusHealthy {
		t.Errorf("Check() = %+v", r)
	}
	if store.Len() != 0 {
		t.Errorf("probe left behind: len = %d", store.Len())
	}

	r = health.NewCacheChecker("cache", downCache{store}, "health.probe").Check(ctx)
	if r.Status != health.StatusUnhealthy || !errors.Is(r.Error, errDown) {
		t.Errorf("Check(down) = %+v", r)
	}
}

func TestBreakerChecker(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	c := health.NewBreakerChecker("breaker", cb)

	if r := c.Check(context.Background()); r.Status != health.StatusHealthy {
		t.Errorf("closed breaker = %+v", r)
	}

	_ = cb.Execute(context.Background(), func(context.Context) error { return errDown })
	r := c.Check(context.Background())
	if r.Status != health.StatusDegraded || r.Details["state"] != resilience.StateOpen.String() {
		t.Errorf("open breaker = %+v", r)
	}
}

func TestSettingsChecker(t *testing.T) {
	ctx := context.Background()

	r := health.NewSettingsChecker("settings", settings.NewMemoryStore("footer", "12")).Check(ctx)
	if r.Status != health.StatusHealthy || r.Details["excluded_menus"] != 2 {
		t.Errorf("Check() = %+v", r)
	}

	r = health.NewSettingsChecker("settings", downSettings{}).Check(ctx)
	if r.Status != health.StatusUnhealthy {
		t.Errorf("Check(down) = %+v", r)
	}
}

func TestMount(t *testing.T) {
	agg := health.NewAggregator(time.Second)
	agg.Register(static("cache", health.Healthy("ok")))
	agg.Register(static("settings", health.Unhealthy("db gone", errDown)))

	r := chi.NewRouter()
	health.Mount(r, agg)

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusServiceUnavailable},
		{"/health", http.StatusServiceUnavailable},
		{"/health/cache", http.StatusOK},
		{"/health/settings", http.StatusServiceUnavailable},
		{"/health/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
			}
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp health.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "unhealthy" || resp.Checks["settings"].Error != "down" {
		t.Errorf("response = %+v", resp)
	}
}
