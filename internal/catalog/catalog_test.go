package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

const pricingDoc = `{
  "allServices": {
    "packages": {
      "name": "Paquetes",
      "isExclusive": true,
      "items": [
        {"id": "pkg-basic", "name": "Web Básica", "price": 200, "description": "Sitio de 5 páginas"}
      ]
    },
    "design": {
      "name": "Diseño",
      "isExclusive": false,
      "items": [
        {"id": "s1", "name": "Logo", "price": 50, "description": "Identidad", "pointCost": 2},
        {"id": "s2", "name": "SEO", "price": "ochenta"},
        {"id": "s3", "name": "", "price": 10},
        {"id": "s4", "name": "Banner", "price": -1},
        {"id": "s1", "name": "Logo repetido", "price": 5}
      ]
    },
    "broken": {"isExclusive": false, "items": []}
  },
  "monthlyPlans": [
    {"id": "p1", "name": "Plan Inicial", "price": 150, "description": "Mantenimiento", "points": 4},
    {"id": "p2", "name": "Plan Roto", "price": 10, "points": -3}
  ]
}`

type fakeSource struct {
	body  []byte
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (s *fakeSource) Fetch(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.body, s.err
}

func (s *fakeSource) String() string { return "fake" }

type fakeLoadRecorder struct {
	mu       sync.Mutex
	success  int
	failure  int
	services int
}

func (r *fakeLoadRecorder) RecordCatalogLoad(success bool, services int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.success++
	} else {
		r.failure++
	}
	r.services = services
}

type fakeEvents struct {
	dropped int
	calls   int
}

func (e *fakeEvents) CatalogLoaded(_ context.Context, _ string, _, _, _, dropped int) {
	e.calls++
	e.dropped = dropped
}

func TestParse_DropsMalformedEntries(t *testing.T) {
	cat, dropped, err := Parse([]byte(pricingDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := cat.Categories["broken"]; ok {
		t.Error("expected category without name to be dropped")
	}
	design := cat.Categories["design"]
	if len(design.Items) != 1 || design.Items[0].ID != "s1" || design.Items[0].Name != "Logo" {
		t.Errorf("expected only the first s1 to survive, got %+v", design.Items)
	}
	if !cat.Categories["packages"].IsExclusive {
		t.Error("expected packages to stay exclusive")
	}
	if len(cat.Plans) != 1 || cat.Plans[0].ID != "p1" {
		t.Errorf("expected only p1, got %+v", cat.Plans)
	}

	// s2 wrong type, s3 empty name, s4 negative price, duplicate s1, broken category, p2
	if len(dropped) != 6 {
		t.Errorf("expected 6 dropped entries, got %d: %+v", len(dropped), dropped)
	}
}

func TestParse_InvalidDocument(t *testing.T) {
	for _, doc := range []string{"", "not json", "[1,2]"} {
		if _, _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("expected error for %q", doc)
		}
	}
}

func TestProvider_CachesSnapshot(t *testing.T) {
	src := &fakeSource{body: []byte(pricingDoc)}
	rec := &fakeLoadRecorder{}
	events := &fakeEvents{}
	p := NewProvider(src, time.Minute, zap.NewNop())
	p.SetRecorder(rec)
	p.SetEventLogger(events)

	first := p.Current(context.Background())
	second := p.Current(context.Background())

	if first != second {
		t.Error("expected the cached snapshot to be returned")
	}
	if src.calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", src.calls.Load())
	}
	if rec.success != 1 || rec.services != 2 {
		t.Errorf("expected 1 successful load of 2 services, got %+v", rec)
	}
	if events.calls != 1 || events.dropped != 6 {
		t.Errorf("expected 1 catalog event with 6 dropped, got %+v", events)
	}
}

func TestProvider_FailureDegradesToEmpty(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	rec := &fakeLoadRecorder{}
	p := NewProvider(src, time.Minute, zap.NewNop())
	p.SetRecorder(rec)

	cat := p.Current(context.Background())

	if cat == nil {
		t.Fatal("expected non-nil catalog")
	}
	if !cat.IsEmpty() {
		t.Error("expected empty catalog on failure")
	}
	if rec.failure != 1 {
		t.Errorf("expected 1 failed load, got %d", rec.failure)
	}
}

func TestProvider_EmptyFallbackExpires(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	p := NewProvider(src, 0, zap.NewNop())
	p.failureTTL = 20 * time.Millisecond

	if p.ttl != DefaultTTL {
		t.Errorf("expected ttl %v for a zero ttl, got %v", DefaultTTL, p.ttl)
	}
	if !p.Current(context.Background()).IsEmpty() {
		t.Fatal("expected empty catalog while source is down")
	}

	src.err = nil
	src.body = []byte(pricingDoc)
	time.Sleep(50 * time.Millisecond)

	if p.Current(context.Background()).IsEmpty() {
		t.Error("expected the empty fallback to expire once the source recovered")
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestProvider_InvalidDocumentDegradesToEmpty(t *testing.T) {
	p := NewProvider(&fakeSource{body: []byte("<html>")}, time.Minute, zap.NewNop())

	if !p.Current(context.Background()).IsEmpty() {
		t.Error("expected empty catalog for invalid document")
	}
}

func TestProvider_Refresh(t *testing.T) {
	src := &fakeSource{err: errors.New("down")}
	p := NewProvider(src, time.Minute, zap.NewNop())

	if !p.Current(context.Background()).IsEmpty() {
		t.Fatal("expected empty catalog while source is down")
	}

	src.err = nil
	src.body = []byte(pricingDoc)

	cat := p.Refresh(context.Background())
	if cat.IsEmpty() {
		t.Error("expected refreshed catalog")
	}
	if p.Current(context.Background()) != cat {
		t.Error("expected refreshed snapshot to be cached")
	}
}

func TestProvider_CollapsesConcurrentLoads(t *testing.T) {
	src := &fakeSource{body: []byte(pricingDoc), delay: 50 * time.Millisecond}
	p := NewProvider(src, time.Minute, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Current(context.Background())
		}()
	}
	wg.Wait()

	if got := src.calls.Load(); got != 1 {
		t.Errorf("expected 1 fetch for concurrent callers, got %d", got)
	}
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pricing.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pricingDoc))
	}))
	defer server.Close()

	src := NewSource(server.URL+"/pricing.json", server.Client())
	if _, ok := src.(*HTTPSource); !ok {
		t.Fatalf("expected HTTPSource, got %T", src)
	}

	body, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != pricingDoc {
		t.Error("expected document body")
	}

	missing := NewSource(server.URL+"/missing.json", server.Client())
	if _, err := missing.Fetch(context.Background()); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.json")
	if err := os.WriteFile(path, []byte(pricingDoc), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	src := NewSource(path, nil)
	if _, ok := src.(*FileSource); !ok {
		t.Fatalf("expected FileSource, got %T", src)
	}
	if src.String() != path {
		t.Errorf("expected String() = %q, got %q", path, src.String())
	}

	body, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body) != len(pricingDoc) {
		t.Error("expected file contents")
	}

	if _, err := NewSource(filepath.Join(t.TempDir(), "nope.json"), nil).Fetch(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}
