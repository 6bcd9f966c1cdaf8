package influxdb

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Avi18971911/Tally/internal/config"
	"github.com/Avi18971911/Tally/internal/db/cache"
	"github.com/Avi18971911/Tally/internal/export/point"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInflux struct {
	mu        sync.Mutex
	buckets   map[string]bool
	created   []string
	orgLookup int
	writes    map[string][]string
}

func newFakeInflux(existing ...string) *fakeInflux {
	f := &fakeInflux{buckets: make(map[string]bool), writes: make(map[string][]string)}
	for _, b := range existing {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v2/buckets":
		name := r.URL.Query().Get("name")
		var found []map[string]any
		if f.buckets[name] {
			found = append(found, map[string]any{"id": "b-" + name, "name": name, "retentionRules": []any{}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"buckets": found})
	case r.Method == http.MethodGet && r.URL.Path == "/api/v2/orgs":
		f.orgLookup++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"orgs": []map[string]any{{"id": "org-1", "name": r.URL.Query().Get("org")}},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/api/v2/buckets":
		var body struct {
			Name  string `json:"name"`
			OrgID string `json:"orgID"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.buckets[body.Name] = true
		f.created = append(f.created, body.OrgID+"/"+body.Name)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "b-" + body.Name, "name": body.Name, "orgID": body.OrgID, "retentionRules": []any{},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/api/v2/write":
		data, _ := io.ReadAll(r.Body)
		bucket := r.URL.Query().Get("bucket")
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			f.writes[bucket] = append(f.writes[bucket], line)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestWriter(t *testing.T, fake *fakeInflux) *Writer {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	known, err := cache.NewKnownSet(1<<10, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(known.Close)
	w := NewWriter(NewClient(config.InfluxDBConfig{URL: srv.URL, Token: "token", Org: "acme"}), "acme", known, zap.NewNop())
	t.Cleanup(w.Close)
	return w
}

func samplePoint() point.Point {
	return point.Point{
		Measurement: "http",
		Tags:        map[string]string{"name": "GET", "location": "host-1"},
		Fields:      map[string]any{"duration": int64(100)},
		Time:        time.Unix(1704164645, 6),
	}
}

func TestWriter_WritePoints(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes line protocol with nanosecond timestamps", func(t *testing.T) {
		fake := newFakeInflux("shop")
		w := newTestWriter(t, fake)
		require.NoError(t, w.WritePoints(ctx, "shop", []point.Point{samplePoint()}))

		require.Len(t, fake.writes["shop"], 1)
		assert.Equal(t, "http,location=host-1,name=GET duration=100i 1704164645000000006", fake.writes["shop"][0])
		assert.Empty(t, fake.created)
	})

	t.Run("Creates a missing bucket once and resolves the org once", func(t *testing.T) {
		fake := newFakeInflux()
		w := newTestWriter(t, fake)
		require.NoError(t, w.WritePoints(ctx, "shop", []point.Point{samplePoint()}))
		require.NoError(t, w.WritePoints(ctx, "shop", []point.Point{samplePoint()}))
		require.NoError(t, w.WritePoints(ctx, "billing", []point.Point{samplePoint()}))

		assert.Equal(t, []string{"org-1/shop", "org-1/billing"}, fake.created)
		assert.Equal(t, 1, fake.orgLookup)
		assert.Len(t, fake.writes["shop"], 2)
	})
}
