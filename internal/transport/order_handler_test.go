package transport

import (
	"encoding/json"
	"net/http"
	"testing"

	"furniture-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(total string) domain.Order {
	return domain.Order{
		ID:               uuid.New(),
		TotalAmount:      decimal.RequireFromString(total),
		Status:           domain.OrderStatusPending,
		PaymentReference: "pay_test",
		ShippingAddress: domain.ShippingAddress{
			Street: "Rua XV de Novembro", Number: "100", Neighborhood: "Centro",
			City: "Curitiba", State: "PR", PostalCode: "80020-310",
		},
	}
}

func TestOrderHandler_CheckoutSequence(t *testing.T) {
	api := newTestAPI(t)
	ana := api.signUp(t, "ana@example.com")
	order := testOrder("300.00")

	w := api.do(http.MethodPost, "/api/orders", ana.AccessToken, order)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// A retried insert returns the stored order.
	w = api.do(http.MethodPost, "/api/orders", ana.AccessToken, order)
	require.Equal(t, http.StatusCreated, w.Code)

	items := OrderItemsRequest{Items: []domain.OrderItem{
		{ID: uuid.New(), ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.RequireFromString("100.00")},
		{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("100.00")},
	}}
	w = api.do(http.MethodPost, "/api/orders/"+order.ID.String()+"/items", ana.AccessToken, items)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Resending the same lines is accepted; a fresh batch is not.
	w = api.do(http.MethodPost, "/api/orders/"+order.ID.String()+"/items", ana.AccessToken, items)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	extra := OrderItemsRequest{Items: []domain.OrderItem{
		{ID: uuid.New(), ProductID: uuid.New(), Quantity: 3, UnitPrice: decimal.RequireFromString("100.00")},
	}}
	w = api.do(http.MethodPost, "/api/orders/"+order.ID.String()+"/items", ana.AccessToken, extra)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = api.do(http.MethodPatch, "/api/orders/"+order.ID.String()+"/status", ana.AccessToken,
		OrderStatusRequest{Status: domain.OrderStatusCompleted})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/orders", ana.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []domain.Order
	require.NoError(t, json.NewDecoder(w.Body).Decode(&orders))
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusCompleted, orders[0].Status)
	assert.Equal(t, ana.User.ID, orders[0].UserID)
	assert.Len(t, orders[0].Items, 2)
}

func TestOrderHandler_Rejections(t *testing.T) {
	api := newTestAPI(t)
	ana := api.signUp(t, "ana@example.com")
	bob := api.signUp(t, "bob@example.com")
	order := testOrder("50.00")

	w := api.do(http.MethodPost, "/api/orders", "", order)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, "/api/orders", ana.AccessToken, order)
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(http.MethodPost, "/api/orders", bob.AccessToken, order)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodGet, "/api/orders/"+order.ID.String(), bob.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	mismatched := OrderItemsRequest{Items: []domain.OrderItem{
		{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("49.99")},
	}}
	w = api.do(http.MethodPost, "/api/orders/"+order.ID.String()+"/items", ana.AccessToken, mismatched)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/orders/"+order.ID.String()+"/items", ana.AccessToken, OrderItemsRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPatch, "/api/orders/"+order.ID.String()+"/status", ana.AccessToken,
		OrderStatusRequest{Status: "shipped"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPatch, "/api/orders/"+order.ID.String()+"/status", ana.AccessToken,
		OrderStatusRequest{Status: domain.OrderStatusCompleted})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPatch, "/api/orders/"+order.ID.String()+"/status", ana.AccessToken,
		OrderStatusRequest{Status: domain.OrderStatusFailed})
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPatch, "/api/orders/"+order.ID.String()+"/status", ana.AccessToken,
		OrderStatusRequest{Status: domain.OrderStatusCompleted})
	assert.Equal(t, http.StatusConflict, w.Code)
}
