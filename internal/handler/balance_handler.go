package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"account-ledger/internal/errors"
	"account-ledger/internal/service"
)

type BalanceHandler struct {
	ledger *service.LedgerService
}

func NewBalanceHandler(ledger *service.LedgerService) *BalanceHandler {
	return &BalanceHandler{
		ledger: ledger,
	}
}

// Amounts travel as strings to keep explicit decimal precision intact; the
// service rejects anything finer than two fractional digits.
type BalanceChangeRequest struct {
	AccountNumber int64  `json:"account_number"`
	Amount        string `json:"amount"`
}

type TransferRequest struct {
	FromAccountNumber int64  `json:"from_account_number"`
	ToAccountNumber   int64  `json:"to_account_number"`
	Amount            string `json:"amount"`
}

// Deposit handles POST /balance/deposit.
func (h *BalanceHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.decodeBalanceChange(w, r)
	if !ok {
		return
	}

	account, err := h.ledger.Deposit(req.AccountNumber, amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// Withdraw handles POST /balance/withdraw.
func (h *BalanceHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.decodeBalanceChange(w, r)
	if !ok {
		return
	}

	account, err := h.ledger.Withdraw(req.AccountNumber, amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// Transfer handles POST /balance/transfer. A successful transfer returns an
// empty data envelope; both balances moved or neither did.
func (h *BalanceHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidArgument, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidArgument, "invalid amount format").WithDetails(err.Error()))
		return
	}

	if err := h.ledger.TransferBalance(req.FromAccountNumber, req.ToAccountNumber, amount); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

func (h *BalanceHandler) decodeBalanceChange(w http.ResponseWriter, r *http.Request) (BalanceChangeRequest, decimal.Decimal, bool) {
	var req BalanceChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidArgument, "invalid request body").WithDetails(err.Error()))
		return req, decimal.Decimal{}, false
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidArgument, "invalid amount format").WithDetails(err.Error()))
		return req, decimal.Decimal{}, false
	}

	return req, amount, true
}
