package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/gente-bank/internal/auth"
	"github.com/Dan9191/gente-bank/internal/middleware"
	"github.com/Dan9191/gente-bank/internal/models"
	"github.com/Dan9191/gente-bank/internal/repository"
	"github.com/Dan9191/gente-bank/internal/service"
	"github.com/beevik/etree"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ---- mock implementation ----

type mockAccountService struct {
	registerFn     func(service.NewAccount) (*models.Account, error)
	authenticateFn func(number, password string) (string, error)
	profileFn      func(number, password string) (*models.Account, error)
	depositFn      func(number, password string, amount decimal.Decimal) (*models.Account, error)
	withdrawFn     func(number, password string, amount decimal.Decimal) (*models.Account, error)
	updateFn       func(number string, update service.ProfileUpdate) (*models.Account, error)
	deleteFn       func(number, password string) error
}

func (m *mockAccountService) Register(_ context.Context, in service.NewAccount) (*models.Account, error) {
	if m.registerFn != nil {
		return m.registerFn(in)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockAccountService) Authenticate(_ context.Context, number, password string) (string, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(number, password)
	}
	return "", fmt.Errorf("not configured")
}

func (m *mockAccountService) Profile(_ context.Context, number, password string) (*models.Account, error) {
	if m.profileFn != nil {
		return m.profileFn(number, password)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockAccountService) Deposit(_ context.Context, number, password string, amount decimal.Decimal) (*models.Account, error) {
	if m.depositFn != nil {
		return m.depositFn(number, password, amount)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockAccountService) Withdraw(_ context.Context, number, password string, amount decimal.Decimal) (*models.Account, error) {
	if m.withdrawFn != nil {
		return m.withdrawFn(number, password, amount)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockAccountService) UpdateProfile(_ context.Context, number string, update service.ProfileUpdate) (*models.Account, error) {
	if m.updateFn != nil {
		return m.updateFn(number, update)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockAccountService) Delete(_ context.Context, number, password string) error {
	if m.deleteFn != nil {
		return m.deleteFn(number, password)
	}
	return fmt.Errorf("not configured")
}

// ---- helpers ----

var testTokens = auth.NewTokenIssuer("test-secret", time.Hour)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRouter(svc AccountService) *mux.Router {
	log := quietLogger()
	return NewRouter(NewHandler(svc, log), testTokens, middleware.NewRateLimiter(0, 1), log)
}

func doRequest(t *testing.T, r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func issue(t *testing.T, number string) string {
	t.Helper()
	token, err := testTokens.Issue(number, "maria")
	require.NoError(t, err)
	return token
}

func sampleAccount(balance string) *models.Account {
	return &models.Account{
		AccountNumber: "48213",
		Username:      "maria",
		PasswordHash:  "$2a$04$hash",
		Balance:       decimal.RequireFromString(balance),
		Kind:          models.KindCurrent,
		Transactions:  []models.Transaction{},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// ---- tests ----

func TestRegister_Created(t *testing.T) {
	svc := &mockAccountService{
		registerFn: func(in service.NewAccount) (*models.Account, error) {
			assert.Equal(t, "maria", in.Username)
			assert.Equal(t, models.KindSavings, in.Kind)
			assert.True(t, in.InitialBalance.Equal(decimal.RequireFromString("12.5")))
			return sampleAccount("12.5"), nil
		},
	}
	rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/register",
		`{"username":"maria","password":"pw","balance":12.5,"kindAccount":"savings"}`, "")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hash")
	var view models.AccountView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "48213", view.AccountNumber)
}

func TestRegister_ValidationError(t *testing.T) {
	svc := &mockAccountService{}
	rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/register", `{"username":"maria","kindAccount":"gold"}`, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "invalid_argument", body.Code)
	assert.Len(t, body.Details, 2)
}

func TestRegister_MalformedBody(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockAccountService{}), http.MethodPost, "/register", `{`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	svc := &mockAccountService{
		authenticateFn: func(number, password string) (string, error) {
			if password != "pw" {
				return "", fmt.Errorf("%w: account %s", service.ErrUnauthorized, number)
			}
			return "signed-token", nil
		},
	}
	r := newTestRouter(svc)

	rec := doRequest(t, r, http.MethodPost, "/auth/login", `{"accountNumber":"48213","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "signed-token", body.AccountToken)

	rec = doRequest(t, r, http.MethodPost, "/auth/login", `{"accountNumber":"48213","password":"bad"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("%w: gone", service.ErrNotFound), http.StatusNotFound, "not_found"},
		{"unauthorized", service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"invalid", fmt.Errorf("%w: amount", service.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"insufficient", service.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
		{"conflict", service.ErrConflict, http.StatusConflict, "conflict"},
		{"internal", fmt.Errorf("db down"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAccountService{
				withdrawFn: func(string, string, decimal.Decimal) (*models.Account, error) { return nil, tt.err },
			}
			rec := doRequest(t, newTestRouter(svc), http.MethodPut, "/auth/withdraw",
				`{"accountNumber":"48213","password":"pw","amount":"10"}`, "")
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Message, "db down")
		})
	}
}

func TestDeposit(t *testing.T) {
	svc := &mockAccountService{
		depositFn: func(number, password string, amount decimal.Decimal) (*models.Account, error) {
			assert.Equal(t, "48213", number)
			assert.Equal(t, "pw", password)
			assert.True(t, amount.Equal(decimal.RequireFromString("100.25")))
			return sampleAccount("100.25"), nil
		},
	}
	rec := doRequest(t, newTestRouter(svc), http.MethodPut, "/auth/deposit",
		`{"accountNumber":"48213","password":"pw","amount":100.25}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view models.AccountView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Balance.Equal(decimal.RequireFromString("100.25")))
}

func TestProfile_RequiresToken(t *testing.T) {
	svc := &mockAccountService{
		profileFn: func(string, string) (*models.Account, error) { return sampleAccount("5"), nil },
	}
	r := newTestRouter(svc)
	body := `{"accountNumber":"48213","password":"pw"}`

	rec := doRequest(t, r, http.MethodPost, "/auth/profile", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/auth/profile", body, issue(t, "48213"))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "maria", resp.User.Username)
}

func TestUpdate_SubjectMustMatch(t *testing.T) {
	var got service.ProfileUpdate
	svc := &mockAccountService{
		updateFn: func(number string, update service.ProfileUpdate) (*models.Account, error) {
			got = update
			a := sampleAccount("0")
			a.Agency = *update.Agency
			return a, nil
		},
	}
	r := newTestRouter(svc)
	body := `{"accountNumber":"48213","agency":"0042","kindAccount":"savings"}`

	rec := doRequest(t, r, http.MethodPut, "/auth/update", body, issue(t, "11111"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, r, http.MethodPut, "/auth/update", body, issue(t, "48213"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.Kind)
	assert.Equal(t, models.KindSavings, *got.Kind)
	assert.Nil(t, got.Username)

	var resp UpdateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0042", resp.Account.Agency)
}

func TestDelete(t *testing.T) {
	svc := &mockAccountService{
		deleteFn: func(number, password string) error { return nil },
	}
	rec := doRequest(t, newTestRouter(svc), http.MethodDelete, "/auth/delete", `{"accountNumber":"48213","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Account deleted")
}

func TestStatement(t *testing.T) {
	svc := &mockAccountService{
		profileFn: func(string, string) (*models.Account, error) {
			a := sampleAccount("40")
			a.Transactions = []models.Transaction{
				{Kind: models.TransactionDeposit, Amount: decimal.NewFromInt(40), Date: time.Now()},
			}
			return a, nil
		},
	}
	rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/auth/statement",
		`{"accountNumber":"48213","password":"pw"}`, issue(t, "48213"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(rec.Body.Bytes()))
	assert.Equal(t, "40.00", doc.FindElement("//balance").Text())
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockAccountService{}), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderTraceID))
}

func TestFullFlow(t *testing.T) {
	log := quietLogger()
	svc := service.NewService(
		repository.NewMemoryStore(),
		auth.NewHasher(bcrypt.MinCost),
		testTokens,
		nil,
		nil,
		log,
		service.Options{},
	)
	r := NewRouter(NewHandler(svc, log), testTokens, middleware.NewRateLimiter(0, 1), log)

	rec := doRequest(t, r, http.MethodPost, "/register", `{"username":"maria","password":"pw"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.AccountView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	creds := fmt.Sprintf(`"accountNumber":"%s","password":"pw"`, created.AccountNumber)

	rec = doRequest(t, r, http.MethodPut, "/auth/deposit", "{"+creds+`,"amount":"100"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodPut, "/auth/withdraw", "{"+creds+`,"amount":"150"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, r, http.MethodPut, "/auth/withdraw", "{"+creds+`,"amount":"100"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.AccountView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Balance.IsZero())
	assert.Len(t, view.Transactions, 2)

	rec = doRequest(t, r, http.MethodPost, "/auth/login", "{"+creds+"}", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = doRequest(t, r, http.MethodPost, "/auth/profile", "{"+creds+"}", login.AccountToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodDelete, "/auth/delete", "{"+creds+"}", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/auth/login", "{"+creds+"}", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
