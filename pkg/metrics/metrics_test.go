package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	r := New()
	v := r.Counter("lookups_total", "Lookups", "make", "outcome")
	c := v.With("BMW", "hit")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Fatalf("expected 5, got %d", c.Value())
	}
	if v.With("BMW", "hit") != c {
		t.Fatal("expected same series for same label values")
	}
	if v.With("BMW", "miss") == c {
		t.Fatal("expected distinct series for different label values")
	}
	if r.Counter("lookups_total", "", "make", "outcome").With("BMW", "hit") != c {
		t.Fatal("re-registering should return the same family")
	}
}

func TestCounter_WrongLabelCountPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New().Counter("x_total", "", "a").With()
}

func TestRegister_ShapeMismatchPanics(t *testing.T) {
	r := New()
	r.Counter("x_total", "", "a")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.Gauge("x_total", "", "a")
}

func TestGauge(t *testing.T) {
	g := New().Gauge("dataset_buckets", "", "make").With("Audi")
	g.Set(3.5)
	if g.Value() != 3.5 {
		t.Fatalf("expected 3.5, got %v", g.Value())
	}
}

func TestHistogram(t *testing.T) {
	h := New().Histogram("latency_seconds", "", []float64{1, 0.1, 0.5}).With()
	for _, v := range []float64{0.05, 0.1, 0.3, 0.8, 2.0} {
		h.Observe(v)
	}
	counts, sum, count := h.snapshot()
	if count != 5 || h.Count() != 5 {
		t.Fatalf("expected 5 observations, got %d", count)
	}
	want := []uint64{2, 1, 1}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("bucket %d: want %d, got %d", i, want[i], counts[i])
		}
	}
	if sum < 3.249 || sum > 3.251 {
		t.Fatalf("unexpected sum %v", sum)
	}
}

func TestHistogramSince(t *testing.T) {
	h := New().Histogram("op_seconds", "", nil).With()
	h.Since(time.Now().Add(-10 * time.Millisecond))
	if h.Count() != 1 {
		t.Fatal("expected 1 observation")
	}
}

func TestRender(t *testing.T) {
	r := New()
	lookups := r.Counter("keyintel_lookups_total", "Lookups by outcome", "make", "outcome")
	lookups.With("BMW", "hit").Add(7)
	lookups.With("Audi", "miss").Add(2)
	r.Gauge("keyintel_dataset_models", "Models per make", "make").With("BMW").Set(4)
	r.Counter("plain_total", "").With().Inc()
	h := r.Histogram("keyintel_lookup_seconds", "Lookup latency", []float64{0.1, 0.5}, "make")
	h.With("BMW").Observe(0.0625)
	h.With("BMW").Observe(0.25)

	out := r.Render()
	for _, want := range []string{
		"# HELP keyintel_lookups_total Lookups by outcome\n# TYPE keyintel_lookups_total counter\n" +
			`keyintel_lookups_total{make="Audi",outcome="miss"} 2` + "\n" +
			`keyintel_lookups_total{make="BMW",outcome="hit"} 7` + "\n",
		"# TYPE keyintel_dataset_models gauge",
		`keyintel_dataset_models{make="BMW"} 4`,
		"# TYPE plain_total counter\nplain_total 1\n",
		`keyintel_lookup_seconds_bucket{make="BMW",le="0.1"} 1`,
		`keyintel_lookup_seconds_bucket{make="BMW",le="0.5"} 2`,
		`keyintel_lookup_seconds_bucket{make="BMW",le="+Inf"} 2`,
		`keyintel_lookup_seconds_sum{make="BMW"} 0.3125`,
		`keyintel_lookup_seconds_count{make="BMW"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "keyintel_lookups_total") > strings.Index(out, "keyintel_dataset_models") {
		t.Error("families should render in registration order")
	}
}

func TestRender_EscapesLabelValues(t *testing.T) {
	r := New()
	r.Counter("x_total", "", "model").With("3 \"Series\"\n").Inc()
	want := `x_total{model="3 \"Series\"\n"} 1`
	if out := r.Render(); !strings.Contains(out, want) {
		t.Fatalf("missing %q in:\n%s", want, out)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	v := New().Counter("c_total", "", "k")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v.With("a").Inc()
			}
		}()
	}
	wg.Wait()
	if got := v.With("a").Value(); got != 5000 {
		t.Fatalf("expected 5000, got %d", got)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("test_total", "test").With().Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "test_total 1") {
		t.Error("missing metric in handler output")
	}
}
