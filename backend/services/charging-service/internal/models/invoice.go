package models

import "time"

// InvoiceItem is one billed line.
type InvoiceItem struct {
	Description string  `json:"description"`
	Units       float64 `json:"units"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// Invoice is the billing document derived from one terminal session.
type Invoice struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"sessionId"`
	UserID        string        `json:"userId"`
	VehicleID     string        `json:"vehicleId"`
	InvoiceNumber string        `json:"invoiceNumber"`
	Date          time.Time     `json:"date"`
	StationName   string        `json:"stationName"`
	Location      string        `json:"stationLocation"`
	DurationSec   int64         `json:"durationSeconds"`
	Items         []InvoiceItem `json:"items"`
	Subtotal      float64       `json:"subtotal"`
	TaxRate       float64       `json:"taxRate"`
	Tax           float64       `json:"tax"`
	Total         float64       `json:"total"`
	PaymentMethod string        `json:"paymentMethod"`
	TransactionID string        `json:"transactionId"`
	Status        string        `json:"status"`
}

// Company is the static issuer metadata printed on invoices.
type Company struct {
	Name      string `yaml:"name" json:"name"`
	Address   string `yaml:"address" json:"address"`
	Phone     string `yaml:"phone" json:"phone"`
	Email     string `yaml:"email" json:"email"`
	GSTNumber string `yaml:"gstNumber" json:"gstNumber"`
	Website   string `yaml:"website" json:"website"`
	UPIID     string `yaml:"upiId" json:"upiId"`
	Currency  string `yaml:"currency" json:"currency"`
}
