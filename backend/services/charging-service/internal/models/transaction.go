package models

import "time"

// TransactionType classifies a wallet ledger entry.
type TransactionType string

const (
	TransactionTypeCharge TransactionType = "charge"
	TransactionTypeTopUp  TransactionType = "wallet_topup"
	TransactionTypeRefund TransactionType = "refund"
	TransactionTypeBonus  TransactionType = "bonus"
)

// Transaction is an immutable wallet ledger entry. Amount is signed: charges are negative.
type Transaction struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Type           TransactionType `json:"type"`
	Amount         float64         `json:"amount"`
	Description    string          `json:"description"`
	Timestamp      time.Time       `json:"timestamp"`
	SessionID      string          `json:"sessionId,omitempty"`
	PaymentMethod  string          `json:"paymentMethod,omitempty"`
	TransactionFee float64         `json:"transactionFee,omitempty"`
	Status         string          `json:"status"`
	Reference      string          `json:"reference,omitempty"`
}
