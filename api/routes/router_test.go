package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/binarycomp-backend/internal/infinity"
	"github.com/angelmondragon/binarycomp-backend/internal/members"
	"github.com/angelmondragon/binarycomp-backend/internal/notifications"
	"github.com/angelmondragon/binarycomp-backend/internal/orders"
	"github.com/angelmondragon/binarycomp-backend/internal/payouts"
	"github.com/angelmondragon/binarycomp-backend/internal/tree"
	"github.com/angelmondragon/binarycomp-backend/internal/wallets"
	"github.com/angelmondragon/binarycomp-backend/pkg/config"
	"github.com/angelmondragon/binarycomp-backend/pkg/enums"
	"github.com/angelmondragon/binarycomp-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

// Stubs embed the interface so only the methods a test reaches need bodies.
type stubMembers struct{ members.Service }

type stubWallets struct{ wallets.Service }

type stubNotifications struct{ notifications.Service }

type stubPayouts struct{ payouts.Service }

func (stubPayouts) List(ctx context.Context, params payouts.ListParams) (*payouts.ListResult, error) {
	return &payouts.ListResult{}, nil
}

type stubOrders struct {
	orders.Service
	mu      sync.Mutex
	created int
}

func (s *stubOrders) Create(ctx context.Context, input orders.CreateInput) (*orders.OrderDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	return &orders.OrderDTO{ID: uuid.New(), PayerID: input.PayerID, Amount: input.Amount, Status: enums.OrderStatusPending}, nil
}

type stubTree struct{ root uuid.UUID }

func (s *stubTree) BuildTree(ctx context.Context, rootID uuid.UUID, depth int) (*tree.Snapshot, error) {
	s.root = rootID
	return &tree.Snapshot{ID: rootID}, nil
}

func (s *stubTree) SearchDownline(ctx context.Context, viewerID, targetID uuid.UUID, depth int) (*tree.Snapshot, error) {
	return &tree.Snapshot{ID: targetID}, nil
}

type stubTeams struct{}

func (stubTeams) Levels(ctx context.Context, ownerID uuid.UUID) (*infinity.Team, error) {
	return &infinity.Team{OwnerID: ownerID}, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, key string) string {
	return "test:idempotency:" + scope + ":" + key
}

type fixture struct {
	handler http.Handler
	orders  *stubOrders
	tree    *stubTree
	store   *memoryIdempotency
}

func newFixture(redisErr error) *fixture {
	cfg := &config.Config{App: config.AppConfig{Env: "dev", CORSAllowedOrigins: []string{"https://ops.example.com"}}}
	f := &fixture{
		orders: &stubOrders{},
		tree:   &stubTree{},
		store:  &memoryIdempotency{data: map[string]string{}},
	}
	f.handler = NewRouter(cfg, logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		Infra{DB: stubPinger{}, Redis: stubPinger{err: redisErr}, Idempotency: f.store},
		Services{
			Members:       stubMembers{},
			Wallets:       stubWallets{},
			Tree:          f.tree,
			Infinity:      stubTeams{},
			Orders:        f.orders,
			Payouts:       stubPayouts{},
			Notifications: stubNotifications{},
		},
	)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	f := newFixture(nil)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)

	down := newFixture(errors.New("redis down"))
	assert.Equal(t, http.StatusServiceUnavailable, down.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(nil)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-Id", "req-123")
	assert.Equal(t, "req-123", f.do(req).Header().Get("X-Request-Id"))

	assert.NotEmpty(t, f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)).Header().Get("X-Request-Id"))
}

func TestOrderCreationRequiresIdempotencyKey(t *testing.T) {
	f := newFixture(nil)
	body := `{"payer_id":"` + uuid.NewString() + `","amount":"10","volume":"10"}`

	resp := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 0, f.orders.created)
}

func TestOrderCreationReplaysKeyedRequest(t *testing.T) {
	f := newFixture(nil)
	body := `{"payer_id":"` + uuid.NewString() + `","amount":"10","volume":"10"}`

	var first string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "order-1")
		resp := f.do(req)
		require.Equal(t, http.StatusCreated, resp.Code)
		if i == 0 {
			first = resp.Body.String()
		} else {
			assert.Equal(t, first, resp.Body.String())
		}
	}
	assert.Equal(t, 1, f.orders.created)
	require.Len(t, f.store.data, 1)
	for key := range f.store.data {
		assert.Contains(t, key, "POST|/api/v1/orders")
	}
}

func TestTreeRouteBindsMemberID(t *testing.T) {
	f := newFixture(nil)
	id := uuid.New()

	resp := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/members/"+id.String()+"/tree?depth=2", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, id, f.tree.root)
}

func TestReadRoutesSkipIdempotency(t *testing.T) {
	f := newFixture(nil)
	resp := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/payouts", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, f.store.data)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(nil)
	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodGet, "/api/v1/commissions", nil)).Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp := f.do(req)
	assert.Equal(t, "https://ops.example.com", resp.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	other.Header.Set("Access-Control-Request-Method", http.MethodPost)
	assert.Empty(t, f.do(other).Header().Get("Access-Control-Allow-Origin"))
}
