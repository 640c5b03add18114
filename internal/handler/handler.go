package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Dan9191/gente-bank/internal/middleware"
	"github.com/Dan9191/gente-bank/internal/models"
	"github.com/Dan9191/gente-bank/internal/service"
	"github.com/Dan9191/gente-bank/internal/statement"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AccountService is the part of service.Service used by Handler
type AccountService interface {
	Register(ctx context.Context, in service.NewAccount) (*models.Account, error)
	Authenticate(ctx context.Context, accountNumber, password string) (string, error)
	Profile(ctx context.Context, accountNumber, password string) (*models.Account, error)
	Deposit(ctx context.Context, accountNumber, password string, amount decimal.Decimal) (*models.Account, error)
	Withdraw(ctx context.Context, accountNumber, password string, amount decimal.Decimal) (*models.Account, error)
	UpdateProfile(ctx context.Context, accountNumber string, update service.ProfileUpdate) (*models.Account, error)
	Delete(ctx context.Context, accountNumber, password string) error
}

type Handler struct {
	svc AccountService
	log *logrus.Logger
	now func() time.Time
}

func NewHandler(svc AccountService, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log, now: time.Now}
}

type RegisterRequest struct {
	Username string           `json:"username" validate:"required"`
	Password string           `json:"password" validate:"required"`
	Balance  *decimal.Decimal `json:"balance"`
	Agency   string           `json:"agency"`
	Kind     string           `json:"kindAccount" validate:"omitempty,oneof=savings current"`
}

type CredentialsRequest struct {
	AccountNumber string `json:"accountNumber" validate:"required,len=5,numeric"`
	Password      string `json:"password" validate:"required"`
}

type TransactionRequest struct {
	AccountNumber string          `json:"accountNumber" validate:"required,len=5,numeric"`
	Password      string          `json:"password" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
}

type UpdateRequest struct {
	AccountNumber string  `json:"accountNumber" validate:"required,len=5,numeric"`
	Username      *string `json:"username"`
	Password      *string `json:"password"`
	Agency        *string `json:"agency"`
	Kind          *string `json:"kindAccount" validate:"omitempty,oneof=savings current"`
}

type LoginResponse struct {
	AccountToken string `json:"accountToken"`
}

type ProfileResponse struct {
	User models.AccountView `json:"user"`
}

type UpdateResponse struct {
	Account models.AccountView `json:"account"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Register handles account registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := service.NewAccount{
		Username: req.Username,
		Password: req.Password,
		Agency:   req.Agency,
		Kind:     models.AccountKind(req.Kind),
	}
	if req.Balance != nil {
		in.InitialBalance = *req.Balance
	}
	account, err := h.svc.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, account.View())
}

// Login handles authentication and returns a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.svc.Authenticate(r.Context(), req.AccountNumber, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{AccountToken: token})
}

// Profile returns the account after re-checking the password
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.svc.Profile(r.Context(), req.AccountNumber, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ProfileResponse{User: account.View()})
}

// Update changes profile fields of the token owner's account
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if subject, _ := middleware.AccountNumberFromContext(r.Context()); subject != req.AccountNumber {
		middleware.RespondWithError(w, http.StatusForbidden, "forbidden", "You can only update your own account")
		return
	}

	update := service.ProfileUpdate{
		Username: req.Username,
		Password: req.Password,
		Agency:   req.Agency,
	}
	if req.Kind != nil {
		kind := models.AccountKind(*req.Kind)
		update.Kind = &kind
	}
	account, err := h.svc.UpdateProfile(r.Context(), req.AccountNumber, update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, UpdateResponse{Account: account.View()})
}

// Deposit credits the account
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, h.svc.Deposit)
}

// Withdraw debits the account
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.transaction(w, r, h.svc.Withdraw)
}

type moveFunc func(ctx context.Context, accountNumber, password string, amount decimal.Decimal) (*models.Account, error)

func (h *Handler) transaction(w http.ResponseWriter, r *http.Request, move moveFunc) {
	var req TransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := move(r.Context(), req.AccountNumber, req.Password, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, account.View())
}

// Delete removes the account permanently
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Delete(r.Context(), req.AccountNumber, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Account deleted"})
}

// Statement renders the account and its transaction log as XML
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.svc.Profile(r.Context(), req.AccountNumber, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := statement.RenderXML(account.View(), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", statement.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid_argument", "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(dst); validationErrors != nil {
		middleware.RespondWithValidationError(w, validationErrors)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, service.ErrInsufficientFunds):
		status, code = http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, service.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	default:
		h.log.WithField("trace_id", middleware.TraceIDFromContext(r.Context())).
			Errorf("Request failed: %v", err)
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}

	message := err.Error()
	switch status {
	case http.StatusNotFound:
		message = "Account not found"
	case http.StatusUnauthorized:
		message = "Invalid credentials"
	}
	middleware.RespondWithJSON(w, status, middleware.ErrorResponse{Code: code, Message: message})
}
