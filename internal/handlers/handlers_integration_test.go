package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testApp struct {
	app     *fiber.App
	store   repositories.Store
	gateway *payment.MockGateway
	auth    *services.AuthService
}

// setupApp sets up a Fiber app for testing with in-memory SQLite and all handlers/services.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	return setupAppWithTimeout(t, 2*time.Second)
}

func setupAppWithTimeout(t *testing.T, paymentTimeout time.Duration) *testApp {
	t.Helper()

	v := viper.New()
	v.SetDefault("JWT_SECRET", "test_jwt_secret")
	v.AutomaticEnv()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.Open(database.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := repositories.NewGormStore(db)
	gateway := payment.NewMockGateway()
	authService := services.NewAuthService(store.Users(), v.GetString("JWT_SECRET"), time.Hour)

	app := fiber.New()
	handlers.SetupRoutes(app.Group("/api/v1"), handlers.Services{
		Auth:           authService,
		Products:       services.NewProductService(store.Products()),
		Carts:          services.NewCartService(store),
		Orders:         services.NewOrderService(store, gateway),
		PaymentTimeout: paymentTimeout,
	})

	return &testApp{app: app, store: store, gateway: gateway, auth: authService}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// registerAndLogin creates a customer through the API and returns its token.
func (a *testApp) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	decode(t, resp, &loginResp)
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

// adminToken stores an admin account directly and returns its token.
func (a *testApp) adminToken(t *testing.T) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("adminpass"), bcrypt.MinCost)
	require.NoError(t, err)
	admin := &models.User{Username: "admin", Email: "admin@example.com", Password: string(hashed), Role: models.RoleAdmin}
	require.NoError(t, a.store.Users().Create(context.Background(), admin))
	token, err := a.auth.IssueToken(admin)
	require.NoError(t, err)
	return token
}

func (a *testApp) seedProduct(t *testing.T, name string, price int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Description: "For testing purposes", Price: price, StockQuantity: stock}
	require.NoError(t, a.store.Products().Create(context.Background(), p))
	return p
}

func (a *testApp) stockOf(t *testing.T, productID string) int {
	t.Helper()
	resp := a.do(t, http.MethodGet, "/api/v1/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p models.Product
	decode(t, resp, &p)
	return p.StockQuantity
}

func TestAuthRegisterAndLogin(t *testing.T) {
	a := setupApp(t)

	userToRegister := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "password123",
	}
	resp := a.do(t, http.MethodPost, "/api/v1/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var registerResp map[string]any
	decode(t, resp, &registerResp)
	assert.Equal(t, "User registered successfully", registerResp["message"])

	// Test Duplicate Registration (username)
	resp = a.do(t, http.MethodPost, "/api/v1/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Test invalid registration input
	resp = a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "x", "email": "nope", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var invalidResp map[string]any
	decode(t, resp, &invalidResp)
	assert.Contains(t, invalidResp, "errors")

	// Test Login
	resp = a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "testuser", "password": "password123"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	decode(t, resp, &loginResp)
	assert.NotEmpty(t, loginResp["token"])

	claims, err := a.auth.ValidateToken(loginResp["token"])
	assert.NoError(t, err)
	assert.Equal(t, "testuser", claims["username"])
	assert.Equal(t, models.RoleUser, claims["role"])
	assert.Contains(t, claims, "user_id")

	// Test wrong password
	resp = a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "testuser", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProductEndpoints(t *testing.T) {
	a := setupApp(t)
	a.seedProduct(t, "Test Laptop", 1000, 5)
	a.seedProduct(t, "Test Monitor", 200, 10)
	customer := a.registerAndLogin(t, "authuser")
	admin := a.adminToken(t)

	// Catalog reads are public.
	resp := a.do(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var products []models.Product
	decode(t, resp, &products)
	assert.Len(t, products, 2)

	newProduct := map[string]any{
		"name":           "Smartphone",
		"description":    "Latest model smartphone",
		"price":          79999,
		"stock_quantity": 50,
	}
	resp = a.do(t, http.MethodPost, "/api/v1/products", customer, newProduct)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/v1/products", admin, newProduct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var createdProduct models.Product
	decode(t, resp, &createdProduct)
	assert.NotEmpty(t, createdProduct.ID)
	assert.Equal(t, "Smartphone", createdProduct.Name)

	resp = a.do(t, http.MethodPut, "/api/v1/products/"+createdProduct.ID, admin, map[string]any{
		"name":           "Smartphone Pro",
		"description":    "Latest model smartphone pro edition",
		"price":          89999,
		"stock_quantity": 45,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var updatedProduct models.Product
	decode(t, resp, &updatedProduct)
	assert.Equal(t, createdProduct.ID, updatedProduct.ID)
	assert.Equal(t, "Smartphone Pro", updatedProduct.Name)
	assert.Equal(t, 45, updatedProduct.StockQuantity)

	resp = a.do(t, http.MethodDelete, "/api/v1/products/"+createdProduct.ID, admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var deleteResp map[string]string
	decode(t, resp, &deleteResp)
	assert.Contains(t, deleteResp["message"], "deleted successfully")

	resp = a.do(t, http.MethodGet, "/api/v1/products/"+createdProduct.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var notFound map[string]any
	decode(t, resp, &notFound)
	assert.Equal(t, "NOT_FOUND", notFound["code"])
}

func TestProtectedEndpointsWithoutAuth(t *testing.T) {
	a := setupApp(t)

	resp := a.do(t, http.MethodPost, "/api/v1/products", "", map[string]any{"name": "Unauthorized Product", "price": 100})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/api/v1/cart", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOrderPaymentAndCancellationFlow(t *testing.T) {
	a := setupApp(t)
	laptop := a.seedProduct(t, "Test Laptop", 1000, 5)
	token := a.registerAndLogin(t, "buyer")

	resp := a.do(t, http.MethodPost, "/api/v1/cart/items", token, map[string]any{"product_id": laptop.ID, "quantity": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var cart services.CartView
	decode(t, resp, &cart)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Test Laptop", cart.Items[0].ProductName)
	assert.Equal(t, int64(3000), cart.TotalPrice)

	resp = a.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"items": []map[string]any{{"product_id": laptop.ID, "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var checkout services.Checkout
	decode(t, resp, &checkout)
	assert.Equal(t, int64(3000), checkout.Amount)
	assert.Equal(t, "Test Laptop", checkout.OrderName)
	assert.Equal(t, 5, a.stockOf(t, laptop.ID))

	resp = a.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart = services.CartView{}
	decode(t, resp, &cart)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.TotalPrice)

	// Wrong amount never reaches the gateway.
	resp = a.do(t, http.MethodPost, "/api/v1/payments/confirm", token, map[string]any{
		"provider": "toss", "paymentKey": "pk-1", "orderId": checkout.PgOrderID, "amount": 2500,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, a.gateway.ConfirmCalls())

	resp = a.do(t, http.MethodPost, "/api/v1/payments/confirm", token, map[string]any{
		"provider": "toss", "paymentKey": "pk-1", "orderId": checkout.PgOrderID, "amount": 3000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var confirmation payment.Confirmation
	decode(t, resp, &confirmation)
	assert.Equal(t, payment.StatusDone, confirmation.Status)
	assert.Equal(t, int64(3000), confirmation.TotalAmount)
	assert.Equal(t, 2, a.stockOf(t, laptop.ID))

	resp = a.do(t, http.MethodPost, "/api/v1/payments/confirm", token, map[string]any{
		"provider": "toss", "paymentKey": "pk-1", "orderId": checkout.PgOrderID, "amount": 3000,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 2, a.stockOf(t, laptop.ID))

	resp = a.do(t, http.MethodGet, "/api/v1/orders", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []handlers.OrderResponse
	decode(t, resp, &history)
	require.Len(t, history, 1)
	assert.Equal(t, models.OrderStatusPaid, history[0].Status)
	assert.Equal(t, int64(3000), history[0].TotalAmount)

	resp = a.do(t, http.MethodDelete, "/api/v1/orders/"+checkout.OrderID, token, map[string]string{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var canceled handlers.OrderResponse
	decode(t, resp, &canceled)
	assert.Equal(t, models.OrderStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.RefundedAmount)
	assert.Equal(t, int64(3000), *canceled.RefundedAmount)
	assert.Equal(t, 5, a.stockOf(t, laptop.ID))
	assert.Equal(t, 1, a.gateway.CancelCalls())

	resp = a.do(t, http.MethodDelete, "/api/v1/orders/"+checkout.OrderID, token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 5, a.stockOf(t, laptop.ID))
}

func TestCancelOrderHonoursPaymentTimeout(t *testing.T) {
	a := setupAppWithTimeout(t, 100*time.Millisecond)
	laptop := a.seedProduct(t, "Test Laptop", 1000, 5)
	token := a.registerAndLogin(t, "buyer")

	resp := a.do(t, http.MethodPost, "/api/v1/orders", token, map[string]any{
		"items": []map[string]any{{"product_id": laptop.ID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var checkout services.Checkout
	decode(t, resp, &checkout)
	resp = a.do(t, http.MethodPost, "/api/v1/payments/confirm", token, map[string]any{
		"provider": "toss", "paymentKey": "pk-1", "orderId": checkout.PgOrderID, "amount": 2000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, a.stockOf(t, laptop.ID))

	// The provider hangs longer than the configured timeout.
	a.gateway.SetDelay(2 * time.Second)
	start := time.Now()
	resp = a.do(t, http.MethodDelete, "/api/v1/orders/"+checkout.OrderID, token, nil)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var gatewayErr map[string]any
	decode(t, resp, &gatewayErr)
	assert.Equal(t, "GATEWAY_ERROR", gatewayErr["code"])

	resp = a.do(t, http.MethodGet, "/api/v1/orders/"+checkout.OrderID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var order handlers.OrderResponse
	decode(t, resp, &order)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, 3, a.stockOf(t, laptop.ID))

	// The timed out attempt does not block a retry.
	a.gateway.SetDelay(0)
	resp = a.do(t, http.MethodDelete, "/api/v1/orders/"+checkout.OrderID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, a.stockOf(t, laptop.ID))
	assert.Equal(t, 2, a.gateway.CancelCalls())
}

func TestOrderErrorMapping(t *testing.T) {
	a := setupApp(t)
	laptop := a.seedProduct(t, "Test Laptop", 1000, 5)
	owner := a.registerAndLogin(t, "owner")
	other := a.registerAndLogin(t, "other")

	resp := a.do(t, http.MethodPost, "/api/v1/orders", owner, map[string]any{"items": []map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/v1/orders", owner, map[string]any{
		"items": []map[string]any{{"product_id": "missing", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/api/v1/orders", owner, map[string]any{
		"items": []map[string]any{{"product_id": laptop.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var checkout services.Checkout
	decode(t, resp, &checkout)

	resp = a.do(t, http.MethodGet, "/api/v1/orders/"+checkout.OrderID, other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = a.do(t, http.MethodDelete, "/api/v1/orders/"+checkout.OrderID, owner, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "pending orders cannot be canceled")

	a.gateway.FailConfirm(errors.New("provider unavailable"))
	resp = a.do(t, http.MethodPost, "/api/v1/payments/confirm", owner, map[string]any{
		"provider": "toss", "paymentKey": "pk-1", "orderId": checkout.PgOrderID, "amount": 1000,
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var gatewayErr map[string]any
	decode(t, resp, &gatewayErr)
	assert.Equal(t, "GATEWAY_ERROR", gatewayErr["code"])

	resp = a.do(t, http.MethodGet, "/api/v1/orders/"+checkout.OrderID, owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var order handlers.OrderResponse
	decode(t, resp, &order)
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestReconciliationsAreAdminOnly(t *testing.T) {
	a := setupApp(t)
	customer := a.registerAndLogin(t, "customer")
	admin := a.adminToken(t)

	resp := a.do(t, http.MethodGet, "/api/v1/payments/reconciliations", customer, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/api/v1/payments/reconciliations", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
