package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"dreka/internal/auth"
	"dreka/internal/docstore"
	"dreka/internal/domain/storage"
	"dreka/internal/domain/users"
	"dreka/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memDocs is an in-memory docstore.Store with the same filter semantics as
// the Postgres store.
type memDocs struct {
	mu      sync.Mutex
	order   []string
	docs    map[string]docstore.Snapshot
	pingErr error

	// createErr fails every Create in a collection.
	createErr map[string]error
	// beforeUpdate runs ahead of each Update, outside the lock.
	beforeUpdate func(collection, id string)
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]docstore.Snapshot), createErr: make(map[string]error)}
}

func memKey(collection, id string) string { return collection + "/" + id }

func (m *memDocs) Get(_ context.Context, collection, id string) (*docstore.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.docs[memKey(collection, id)]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return &snap, nil
}

func (m *memDocs) Query(_ context.Context, collection string, filters ...docstore.Filter) ([]docstore.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []docstore.Snapshot
	for _, key := range m.order {
		snap := m.docs[key]
		if snap.Collection != collection {
			continue
		}
		var body map[string]any
		if err := json.Unmarshal(snap.Data, &body); err != nil {
			continue
		}
		if matchesAll(body, filters) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (m *memDocs) QueryPage(ctx context.Context, collection string, page docstore.Page, filters ...docstore.Filter) ([]docstore.Snapshot, int, error) {
	all, err := m.Query(ctx, collection, filters...)
	if err != nil {
		return nil, 0, err
	}
	if page.NewestFirst {
		slices.Reverse(all)
	}
	total := len(all)
	if page.Offset >= total {
		return []docstore.Snapshot{}, total, nil
	}
	all = all[page.Offset:]
	if page.Limit > 0 && page.Limit < len(all) {
		all = all[:page.Limit]
	}
	return all, total, nil
}

func (m *memDocs) Average(ctx context.Context, collection string, fields []string, filters ...docstore.Filter) (docstore.Averages, error) {
	all, err := m.Query(ctx, collection, filters...)
	if err != nil {
		return docstore.Averages{}, err
	}
	out := docstore.Averages{Count: len(all), Means: make(map[string]*float64, len(fields))}
	for _, field := range fields {
		var sum float64
		var n int
		for _, snap := range all {
			var body map[string]any
			_ = json.Unmarshal(snap.Data, &body)
			if v, ok := body[field].(float64); ok {
				sum += v
				n++
			}
		}
		if n > 0 {
			mean := sum / float64(n)
			out.Means[field] = &mean
		}
	}
	return out, nil
}

func matchesAll(body map[string]any, filters []docstore.Filter) bool {
	for _, f := range filters {
		want := normalize(f.Value)
		got := body[f.Field]
		switch f.Op {
		case docstore.OpEqual:
			if !reflect.DeepEqual(got, want) {
				return false
			}
		case docstore.OpArrayContains:
			list, ok := got.([]any)
			if !ok {
				return false
			}
			found := false
			for _, v := range list {
				if reflect.DeepEqual(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func normalize(v any) any {
	b, _ := json.Marshal(v)
	var out any
	_ = json.Unmarshal(b, &out)
	return out
}

func (m *memDocs) Create(_ context.Context, collection, id string, data any) (*docstore.Snapshot, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createErr[collection]; err != nil {
		return nil, err
	}
	key := memKey(collection, id)
	if _, ok := m.docs[key]; ok {
		return nil, docstore.ErrConflict
	}
	now := time.Now().UTC()
	snap := docstore.Snapshot{ID: id, Collection: collection, Data: body, CreatedAt: now, UpdatedAt: now}
	m.docs[key] = snap
	m.order = append(m.order, key)
	return &snap, nil
}

func (m *memDocs) Update(_ context.Context, collection, id string, fields map[string]any, where ...docstore.Filter) (*docstore.Snapshot, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(collection, id)
	}
	return m.mutate(collection, id, func(body map[string]any) error {
		if !matchesAll(body, where) {
			return docstore.ErrPrecondition
		}
		for k, v := range fields {
			body[k] = normalize(v)
		}
		return nil
	})
}

func (m *memDocs) Modify(_ context.Context, collection, id string, fn docstore.ModifyFunc) (*docstore.Snapshot, error) {
	m.mu.Lock()
	current, ok := m.docs[memKey(collection, id)]
	m.mu.Unlock()
	if !ok {
		return nil, docstore.ErrNotFound
	}
	fields, err := fn(&current)
	if err != nil {
		return nil, err
	}
	return m.mutate(collection, id, func(body map[string]any) error {
		for k, v := range fields {
			body[k] = normalize(v)
		}
		return nil
	})
}

func (m *memDocs) Append(_ context.Context, collection, id, field string, value any) (*docstore.Snapshot, error) {
	return m.mutate(collection, id, func(body map[string]any) error {
		list, _ := body[field].([]any)
		body[field] = append(list, normalize(value))
		return nil
	})
}

func (m *memDocs) mutate(collection, id string, fn func(map[string]any) error) (*docstore.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(collection, id)
	snap, ok := m.docs[key]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	body := map[string]any{}
	if err := json.Unmarshal(snap.Data, &body); err != nil {
		return nil, err
	}
	if err := fn(body); err != nil {
		return nil, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	snap.Data = data
	snap.UpdatedAt = time.Now().UTC()
	m.docs[key] = snap
	return &snap, nil
}

func (m *memDocs) Ping(context.Context) error { return m.pingErr }

type MockSubscriptions struct {
	mock.Mock
}

func (m *MockSubscriptions) Sync(ctx context.Context, token string, topics []string) error {
	return m.Called(ctx, token, topics).Error(0)
}

func (m *MockSubscriptions) Move(ctx context.Context, oldToken, newToken string) error {
	return m.Called(ctx, oldToken, newToken).Error(0)
}

func (m *MockSubscriptions) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

const testSecret = "test-secret"

type testApp struct {
	app  *application
	docs *memDocs
	subs *MockSubscriptions
	mux  http.Handler
}

func newTestApplication(t *testing.T) *testApp {
	t.Helper()

	docs := newMemDocs()
	subs := new(MockSubscriptions)
	app := &application{
		config: config{
			env: "test",
			auth: authConfig{
				basic: basicConfig{user: "ops", pass: "hunter2"},
				token: tokenConfig{secret: testSecret, aud: "dreka", iss: "dreka"},
			},
		},
		store:         storage.NewContainer(docs),
		logger:        zap.NewNop().Sugar(),
		authenticator: auth.NewJWTAuthenticator(testSecret, "dreka", "dreka"),
		subscriptions: subs,
		gatherer:      prometheus.NewRegistry(),
		metrics:       metrics.New(nil),
	}
	return &testApp{app: app, docs: docs, subs: subs, mux: app.mount()}
}

// seedUser stores u directly, bypassing first sign-in.
func (ta *testApp) seedUser(t *testing.T, u users.User) {
	t.Helper()
	if u.FavoriteVenueIDs == nil {
		u.FavoriteVenueIDs = []string{}
	}
	_, err := ta.docs.Create(context.Background(), users.Collection, u.ID, u)
	require.NoError(t, err)
}

func (ta *testApp) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := ta.app.authenticator.GenerateToken(auth.Identity{Subject: userID, Email: userID + "@example.com"}, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends an authenticated request as userID; an empty userID sends none.
func (ta *testApp) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+ta.token(t, userID))
	}
	rr := httptest.NewRecorder()
	ta.mux.ServeHTTP(rr, req)
	return rr
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env.Data
}
