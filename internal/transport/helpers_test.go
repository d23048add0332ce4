package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"furniture-store/internal/domain"
	"furniture-store/internal/middleware"
	"furniture-store/internal/repository"
	"furniture-store/internal/service"
	"furniture-store/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// Mock repositories for testing
type mockUserRepository struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	profiles map[uuid.UUID]*domain.Profile
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:    make(map[string]*domain.User),
		profiles: make(map[uuid.UUID]*domain.Profile),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User, profile *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	m.profiles[user.ID] = profile
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) FindProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, exists := m.profiles[userID]
	if !exists {
		return nil, repository.ErrProfileNotFound
	}
	copied := *profile
	return &copied, nil
}

func (m *mockUserRepository) UpdateRole(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, exists := m.profiles[userID]
	if !exists {
		return repository.ErrProfileNotFound
	}
	profile.Role = role
	return nil
}

type mockRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindActive(ctx context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type mockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]domain.Product)}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = *product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[product.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	product.AddedBy = existing.AddedBy
	product.CreatedAt = existing.CreatedAt
	m.products[product.ID] = *product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &product, nil
}

func (m *mockProductRepository) List(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Product{}
	for _, p := range m.products {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type mockOrderRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[order.ID]; exists {
		return false, nil
	}
	stored := *order
	m.orders[order.ID] = &stored
	return true, nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *order
	copied.Items = append([]domain.OrderItem(nil), order.Items...)
	return &copied, nil
}

func (m *mockOrderRepository) AddItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.Items = append(order.Items, items...)
	return nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, paymentReference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok || order.Status != from {
		return repository.ErrOrderStatusUnchanged
	}
	order.Status = to
	return nil
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

// testAPI wires every handler over in-memory repositories.
type testAPI struct {
	router   chi.Router
	auth     service.AuthService
	users    *mockUserRepository
	products *mockProductRepository
	orders   *mockOrderRepository
	storeDir string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()

	users := newMockUserRepository()
	products := newMockProductRepository()
	orders := newMockOrderRepository()
	authSvc := service.NewAuthService(users, newMockRefreshTokenRepository(), service.AuthConfig{Secret: testSecret}, logger)

	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir, "http://files.test", logger)
	require.NoError(t, err)

	authMW := middleware.AuthMiddleware(testSecret, logger)
	adminMW := middleware.RequireAdmin(authSvc, logger)

	r := chi.NewRouter()
	NewAuthHandler(authSvc, logger).RegisterRoutes(r, authMW, nil)
	NewProductHandler(service.NewProductService(products, logger), logger).RegisterRoutes(r, authMW, adminMW)
	NewOrderHandler(service.NewOrderService(orders, nil, logger), logger).RegisterRoutes(r, authMW)
	NewStorageHandler(store, logger).RegisterRoutes(r, authMW, adminMW)

	return &testAPI{router: r, auth: authSvc, users: users, products: products, orders: orders, storeDir: dir}
}

// do sends a JSON request and returns the recorder.
func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// signUp registers email and returns its auth response.
func (a *testAPI) signUp(t *testing.T, email string) AuthResponse {
	t.Helper()
	w := a.do(http.MethodPost, "/api/auth/signup", "", SignUpRequest{Email: email, Password: "secret123", FullName: "Test User"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp AuthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

// signUpAdmin registers email and promotes its profile to admin.
func (a *testAPI) signUpAdmin(t *testing.T, email string) AuthResponse {
	t.Helper()
	resp := a.signUp(t, email)
	require.NoError(t, a.users.UpdateRole(context.Background(), resp.User.ID, domain.RoleAdmin))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error
}
