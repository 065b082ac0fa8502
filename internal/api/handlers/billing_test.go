package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mealtrack/internal/core"
	"mealtrack/internal/types"
)

// --- Mocks ---

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) All() []types.Plan {
	args := m.Called()
	return args.Get(0).([]types.Plan)
}

func (m *mockCatalog) Lookup(id types.PlanID) (types.Plan, error) {
	args := m.Called(id)
	return args.Get(0).(types.Plan), args.Error(1)
}

type mockOrderCreator struct {
	mock.Mock
}

func (m *mockOrderCreator) CreateOrder(ctx context.Context, userID string, planID types.PlanID) (*types.PaymentOrder, error) {
	args := m.Called(ctx, userID, planID)
	if r := args.Get(0); r != nil {
		return r.(*types.PaymentOrder), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockVerifierService struct {
	mock.Mock
}

func (m *mockVerifierService) VerifyAndCredit(ctx context.Context, in types.VerifyPaymentInput) (*types.VerifyPaymentResult, error) {
	args := m.Called(ctx, in)
	if r := args.Get(0); r != nil {
		return r.(*types.VerifyPaymentResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockBalanceReader struct {
	mock.Mock
}

func (m *mockBalanceReader) GetBalance(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(types.WithUserID(req.Context(), "user_1"))
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

// --- Tests ---

func TestBillingHandler_CreateOrder_Success(t *testing.T) {
	orders := new(mockOrderCreator)
	h := NewBillingHandler(new(mockCatalog), orders, new(mockVerifierService), new(mockBalanceReader), core.NewValidator(nil), testLogger())

	orders.On("CreateOrder", mock.Anything, "user_1", types.PlanStandard).
		Return(&types.PaymentOrder{
			OrderID:  "order_abc123",
			Amount:   49900,
			Currency: "INR",
			PlanID:   types.PlanStandard,
			KeyID:    "rzp_test_key",
		}, nil)

	rec := httptest.NewRecorder()
	h.CreateOrder(rec, authedRequest(http.MethodPost, "/billing/orders", `{"plan_id":"STANDARD"}`))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data types.PaymentOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order_abc123", resp.Data.OrderID)
	assert.Equal(t, "rzp_test_key", resp.Data.KeyID)
}

func TestBillingHandler_CreateOrder_MissingPlan(t *testing.T) {
	h := NewBillingHandler(new(mockCatalog), new(mockOrderCreator), new(mockVerifierService), new(mockBalanceReader), core.NewValidator(nil), testLogger())

	rec := httptest.NewRecorder()
	h.CreateOrder(rec, authedRequest(http.MethodPost, "/billing/orders", `{}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), decodeErrorCode(t, rec))
}

func TestBillingHandler_CreateOrder_UnknownPlan(t *testing.T) {
	orders := new(mockOrderCreator)
	h := NewBillingHandler(new(mockCatalog), orders, new(mockVerifierService), new(mockBalanceReader), core.NewValidator(nil), testLogger())

	orders.On("CreateOrder", mock.Anything, "user_1", types.PlanID("GOLD")).
		Return(nil, types.NewAppError(types.ErrCodeValidationInvalidPlan, "unknown plan", nil))

	rec := httptest.NewRecorder()
	h.CreateOrder(rec, authedRequest(http.MethodPost, "/billing/orders", `{"plan_id":"GOLD"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidPlan), decodeErrorCode(t, rec))
}

func TestBillingHandler_VerifyPayment_Success(t *testing.T) {
	verifier := new(mockVerifierService)
	h := NewBillingHandler(new(mockCatalog), new(mockOrderCreator), verifier, new(mockBalanceReader), core.NewValidator(nil), testLogger())

	verifier.On("VerifyAndCredit", mock.Anything, types.VerifyPaymentInput{
		OrderID:   "order_abc",
		PaymentID: "pay_xyz",
		Signature: "deadbeef",
		UserID:    "user_1",
		PlanID:    types.PlanBasic,
	}).Return(&types.VerifyPaymentResult{NewBalance: 10, CreditsAdded: 10}, nil)

	body := `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"deadbeef","plan_id":"BASIC"}`
	rec := httptest.NewRecorder()
	h.VerifyPayment(rec, authedRequest(http.MethodPost, "/billing/verify", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data types.VerifyPaymentResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Data.NewBalance)
}

func TestBillingHandler_VerifyPayment_BadSignatureReturns400(t *testing.T) {
	verifier := new(mockVerifierService)
	h := NewBillingHandler(new(mockCatalog), new(mockOrderCreator), verifier, new(mockBalanceReader), core.NewValidator(nil), testLogger())

	verifier.On("VerifyAndCredit", mock.Anything, mock.Anything).
		Return(nil, types.NewAppError(types.ErrCodePaymentSignatureInvalid, "payment verification failed", nil))

	body := `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"forged","plan_id":"BASIC"}`
	rec := httptest.NewRecorder()
	h.VerifyPayment(rec, authedRequest(http.MethodPost, "/billing/verify", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodePaymentSignatureInvalid), decodeErrorCode(t, rec))
}

func TestBillingHandler_VerifyPayment_MissingCallbackFields(t *testing.T) {
	verifier := new(mockVerifierService)
	h := NewBillingHandler(new(mockCatalog), new(mockOrderCreator), verifier, new(mockBalanceReader), core.NewValidator(nil), testLogger())

	rec := httptest.NewRecorder()
	h.VerifyPayment(rec, authedRequest(http.MethodPost, "/billing/verify", `{"plan_id":"BASIC"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	verifier.AssertNotCalled(t, "VerifyAndCredit", mock.Anything, mock.Anything)
}

func TestBillingHandler_GetSubscription(t *testing.T) {
	balances := new(mockBalanceReader)
	h := NewBillingHandler(new(mockCatalog), new(mockOrderCreator), new(mockVerifierService), balances, core.NewValidator(nil), testLogger())

	balances.On("GetBalance", mock.Anything, "user_1").Return(17, nil)

	rec := httptest.NewRecorder()
	h.GetSubscription(rec, authedRequest(http.MethodGet, "/billing/subscription", ""))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data SubscriptionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 17, resp.Data.RemainingCredits)
}

func TestBillingHandler_ListPlans(t *testing.T) {
	catalog := new(mockCatalog)
	h := NewBillingHandler(catalog, new(mockOrderCreator), new(mockVerifierService), new(mockBalanceReader), core.NewValidator(nil), testLogger())

	catalog.On("All").Return([]types.Plan{
		{ID: types.PlanBasic, Amount: 29900, Currency: "INR", Credits: 10},
	})

	rec := httptest.NewRecorder()
	h.ListPlans(rec, authedRequest(http.MethodGet, "/billing/plans", ""))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data PlansResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Plans, 1)
	assert.Equal(t, types.PlanBasic, resp.Data.Plans[0].ID)
}
