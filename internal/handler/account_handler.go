package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
	"account-ledger/internal/service"
)

type AccountHandler struct {
	ledger *service.LedgerService
}

func NewAccountHandler(ledger *service.LedgerService) *AccountHandler {
	return &AccountHandler{
		ledger: ledger,
	}
}

// CreateAccount handles POST /accounts?accountName=...
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	accountName := r.URL.Query().Get("accountName")
	if accountName == "" {
		writeError(w, errors.NewAppError(errors.InvalidArgument, "accountName query param must be not empty"))
		return
	}

	account, err := h.ledger.Create(accountName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

// FindAll handles GET /accounts?pageNum=&pageSize= with defaults 0 and 20.
func (h *AccountHandler) FindAll(w http.ResponseWriter, r *http.Request) {
	pageNum, err := queryIntOrDefault(r, "pageNum", 0)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidArgument, "Invalid number format for param 'pageNum' or 'pageSize'"))
		return
	}
	pageSize, err := queryIntOrDefault(r, "pageSize", 20)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidArgument, "Invalid number format for param 'pageNum' or 'pageSize'"))
		return
	}

	accounts, err := h.ledger.FindAll(pageNum, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	response := make([]AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		response = append(response, toAccountResponse(account))
	}

	writeJSON(w, http.StatusOK, response)
}

// FindByNumber handles GET /accounts/{accountNumber}.
func (h *AccountHandler) FindByNumber(w http.ResponseWriter, r *http.Request) {
	number, err := pathAccountNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.ledger.FindByNumber(number)
	if err != nil {
		writeError(w, err)
		return
	}
	if account == nil {
		writeNotFound(w, "Account not found")
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

type UpdateAccountRequest struct {
	AccountName string `json:"account_name"`
	Balance     string `json:"balance"`
}

// UpdateAccount handles PUT /accounts/{accountNumber}, a full overwrite of
// name and balance.
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	number, err := pathAccountNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidArgument, "invalid request body").WithDetails(err.Error()))
		return
	}

	balance, err := decimal.NewFromString(req.Balance)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidArgument, "invalid balance format").WithDetails(err.Error()))
		return
	}

	account, err := h.ledger.Update(&domain.Account{
		Number:  number,
		Name:    req.AccountName,
		Balance: balance,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func pathAccountNumber(r *http.Request) (int64, error) {
	vars := mux.Vars(r)

	number, err := strconv.ParseInt(vars["accountNumber"], 10, 64)
	if err != nil {
		return 0, errors.NewAppError(errors.InvalidArgument, "Invalid number format for param 'accountNumber'")
	}
	return number, nil
}

func queryIntOrDefault(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
