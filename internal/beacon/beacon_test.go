package beacon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/patrickwarner/spaceforward/internal/db"
	"github.com/patrickwarner/spaceforward/internal/models"
	"github.com/patrickwarner/spaceforward/internal/observability"
)

var polygon = models.Network{Name: "polygon", ChainID: 137}

func TestGraphQLSink(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		query = body["query"]
		_, _ = w.Write([]byte(`{"data":{"increment":{"message":"ok"}}}`))
	}))
	defer srv.Close()

	s := &GraphQLSink{URL: srv.URL, Client: srv.Client()}
	require.NoError(t, s.Record(context.Background(), EventVisit, polygon, "7"))
	assert.Equal(t, `mutation { increment(eventType: visits, spaceId: "7") { message } }`, query)

	require.NoError(t, s.Record(context.Background(), EventClick, polygon, `7" }`))
	assert.Equal(t, `mutation { increment(eventType: clicks, spaceId: "7\" }") { message } }`, query)
}

func TestRESTSink(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := &RESTSink{BaseURL: srv.URL + "/", Client: srv.Client()}
	require.NoError(t, s.Record(context.Background(), EventVisit, polygon, "7"))
	require.NoError(t, s.Record(context.Background(), EventClick, polygon, "7"))

	assert.Equal(t, []string{"/api/v1/space/7", "/api/v1/space/click/7"}, paths)
}

func TestRESTSinkNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := &RESTSink{BaseURL: srv.URL}
	assert.Error(t, s.Record(context.Background(), EventVisit, polygon, "7"))
}

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	store := db.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer store.Close()

	day := time.Date(2022, 4, 15, 12, 0, 0, 0, time.UTC)
	s := &RedisSink{Store: store, Now: func() time.Time { return day }}

	require.NoError(t, s.Record(context.Background(), EventClick, polygon, "7"))
	require.NoError(t, s.Record(context.Background(), EventClick, polygon, "7"))

	got, err := store.SpaceCounter(context.Background(), "polygon", "7", "clicks", day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Record(_ context.Context, event Event, _ models.Network, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	ok := &recordingSink{name: "ok"}
	failing := &recordingSink{name: "failing", err: errors.New("down")}

	d := NewDispatcher([]Sink{ok, failing}, 2, 10, time.Second, zaptest.NewLogger(t), metrics)
	assert.Equal(t, []string{"ok", "failing"}, d.Sinks())

	assert.True(t, d.Dispatch(EventVisit, polygon, "7"))
	assert.True(t, d.Dispatch(EventClick, polygon, "7"))
	d.Close()

	assert.ElementsMatch(t, []Event{EventVisit, EventClick}, ok.events)
	assert.Len(t, failing.events, 2)
	assert.Equal(t, 1, metrics.Count("beacon", "visits", "ok", "success"))
	assert.Equal(t, 1, metrics.Count("beacon", "clicks", "ok", "success"))
	assert.Equal(t, 1, metrics.Count("beacon", "visits", "failing", "failure"))
}

type fullPool struct{}

func (fullPool) TrySubmit(func()) bool { return false }
func (fullPool) StopAndWait()          {}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	sink := &recordingSink{name: "rest"}
	d := newDispatcher(fullPool{}, []Sink{sink}, time.Second, zaptest.NewLogger(t), metrics)

	assert.False(t, d.Dispatch(EventVisit, polygon, "7"))
	assert.Empty(t, sink.events)
	assert.Equal(t, 1, metrics.Count("beacon", "visits", "rest", "dropped"))
}
