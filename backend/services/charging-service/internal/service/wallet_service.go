package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"evcharge/backend/libs/idgen"
	"evcharge/backend/services/charging-service/internal/energy"
	"evcharge/backend/services/charging-service/internal/models"
)

// Top-up limits.
const (
	MinTopUp = 50.0
	MaxTopUp = 10000.0
)

// PaymentMethodWallet is recorded on charges settled from the balance.
const PaymentMethodWallet = "Wallet"

// PaymentCollector takes money from an external instrument.
type PaymentCollector interface {
	Collect(ctx context.Context, amount float64, method string) (string, error)
}

// TransactionArchive receives every ledger entry after it is committed.
type TransactionArchive interface {
	ArchiveTransaction(ctx context.Context, tx models.Transaction) error
}

// TopUpOption is one preset offered by the wallet screen.
type TopUpOption struct {
	Amount  float64 `json:"amount"`
	Bonus   float64 `json:"bonus"`
	Popular bool    `json:"popular,omitempty"`
}

// PaymentMethod describes an accepted top-up instrument.
type PaymentMethod struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

var bonusTiers = []TopUpOption{
	{Amount: 5000, Bonus: 750},
	{Amount: 2000, Bonus: 200},
	{Amount: 1000, Bonus: 75},
	{Amount: 500, Bonus: 25},
}

// TopUpResult is returned by a successful top-up.
type TopUpResult struct {
	Balance      float64              `json:"newBalance"`
	Fee          float64              `json:"fee"`
	Bonus        float64              `json:"bonus"`
	Transactions []models.Transaction `json:"transactions"`
}

// SpendingInsights covers charges in the trailing 30 days.
type SpendingInsights struct {
	Spent          float64 `json:"last30DaysSpent"`
	SessionsCount  int     `json:"sessionsCount"`
	AverageSession float64 `json:"avgSessionCost"`
	MostExpensive  float64 `json:"mostExpensiveSession"`
}

// WalletSummary aggregates a user's ledger.
type WalletSummary struct {
	Balance      float64          `json:"balance"`
	TotalSpent   float64          `json:"totalSpent"`
	TotalTopUps  float64          `json:"totalTopups"`
	TotalRefunds float64          `json:"totalRefunds"`
	TotalBonuses float64          `json:"totalBonuses"`
	Insights     SpendingInsights `json:"insights"`
}

type account struct {
	mu      sync.Mutex
	initial float64
	balance float64
	txs     []models.Transaction
}

// WalletService keeps balances and the immutable transaction ledger.
type WalletService struct {
	mu       sync.RWMutex
	accounts map[string]*account

	payments PaymentCollector
	archive  TransactionArchive
	ids      *idgen.Generator
	logger   *zap.Logger
	now      func() time.Time
}

// NewWalletService builds the ledger. archive may be nil.
func NewWalletService(payments PaymentCollector, archive TransactionArchive, ids *idgen.Generator, logger *zap.Logger, now func() time.Time) *WalletService {
	if now == nil {
		now = time.Now
	}
	return &WalletService{
		accounts: make(map[string]*account),
		payments: payments,
		archive:  archive,
		ids:      ids,
		logger:   logger,
		now:      now,
	}
}

// Open creates the account with its initial balance. Reopening is a no-op.
func (s *WalletService) Open(userID string, initial float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[userID]; ok {
		return
	}
	initial = energy.Round2(initial)
	s.accounts[userID] = &account{initial: initial, balance: initial}
}

func (s *WalletService) account(userID string) (*account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return acc, nil
}

// Balance returns the current balance.
func (s *WalletService) Balance(_ context.Context, userID string) (float64, error) {
	acc, err := s.account(userID)
	if err != nil {
		return 0, err
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balance, nil
}

// Transactions returns the ledger newest first.
func (s *WalletService) Transactions(_ context.Context, userID string) ([]models.Transaction, error) {
	acc, err := s.account(userID)
	if err != nil {
		return nil, err
	}
	acc.mu.Lock()
	out := make([]models.Transaction, len(acc.txs))
	copy(out, acc.txs)
	acc.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// TopUp collects amount through the payment gateway, then credits amount minus fee plus
// any bonus tier as separate ledger entries.
func (s *WalletService) TopUp(ctx context.Context, userID string, amount float64, method string) (*TopUpResult, error) {
	if amount < MinTopUp || amount > MaxTopUp {
		return nil, fmt.Errorf("%w: top-up must be between %.0f and %.0f", ErrInvalidAmount, MinTopUp, MaxTopUp)
	}
	if method == "" {
		method = "upi"
	}
	fee, err := TransactionFee(amount, method)
	if err != nil {
		return nil, err
	}
	acc, err := s.account(userID)
	if err != nil {
		return nil, err
	}

	reference, err := s.payments.Collect(ctx, amount, method)
	if err != nil {
		s.logger.Warn("top-up payment failed", zap.String("user_id", userID), zap.Float64("amount", amount), zap.Error(err))
		return nil, err
	}

	now := s.now()
	credit := models.Transaction{
		ID:             s.ids.Next("txn"),
		UserID:         userID,
		Type:           models.TransactionTypeTopUp,
		Amount:         energy.Sum2(amount, -fee),
		Description:    fmt.Sprintf("Wallet Top-up via %s", methodName(method)),
		Timestamp:      now,
		PaymentMethod:  method,
		TransactionFee: fee,
		Status:         "completed",
		Reference:      reference,
	}
	entries := []models.Transaction{credit}
	bonus := TopUpBonus(amount)
	if bonus > 0 {
		entries = append(entries, models.Transaction{
			ID:          s.ids.Next("txn"),
			UserID:      userID,
			Type:        models.TransactionTypeBonus,
			Amount:      bonus,
			Description: fmt.Sprintf("Top-up bonus on %.2f", amount),
			Timestamp:   now,
			Status:      "completed",
			Reference:   reference,
		})
	}

	balance := s.post(acc, entries...)
	s.archiveAll(ctx, entries)
	s.logger.Info("wallet topped up",
		zap.String("user_id", userID),
		zap.Float64("amount", amount),
		zap.Float64("fee", fee),
		zap.Float64("bonus", bonus),
		zap.Float64("balance", balance),
	)
	return &TopUpResult{Balance: balance, Fee: fee, Bonus: bonus, Transactions: entries}, nil
}

// Charge debits a completed session. The balance may go negative when the delivered energy
// exceeded the estimate checked at start.
func (s *WalletService) Charge(ctx context.Context, userID, sessionID string, amount float64, description string) (models.Transaction, error) {
	amount = energy.Round2(amount)
	if amount < 0 {
		return models.Transaction{}, ErrInvalidAmount
	}
	acc, err := s.account(userID)
	if err != nil {
		return models.Transaction{}, err
	}
	tx := models.Transaction{
		ID:            s.ids.Next("txn"),
		UserID:        userID,
		Type:          models.TransactionTypeCharge,
		Amount:        -amount,
		Description:   description,
		Timestamp:     s.now(),
		SessionID:     sessionID,
		PaymentMethod: PaymentMethodWallet,
		Status:        "completed",
	}
	s.post(acc, tx)
	s.archiveAll(ctx, []models.Transaction{tx})
	return tx, nil
}

// Refund credits amount back to the user.
func (s *WalletService) Refund(ctx context.Context, userID, sessionID string, amount float64, reason string) (models.Transaction, float64, error) {
	amount = energy.Round2(amount)
	if amount <= 0 || amount > MaxTopUp {
		return models.Transaction{}, 0, ErrInvalidAmount
	}
	acc, err := s.account(userID)
	if err != nil {
		return models.Transaction{}, 0, err
	}
	if reason == "" {
		reason = "Refund"
	}
	tx := models.Transaction{
		ID:          s.ids.Next("txn"),
		UserID:      userID,
		Type:        models.TransactionTypeRefund,
		Amount:      amount,
		Description: reason,
		Timestamp:   s.now(),
		SessionID:   sessionID,
		Status:      "completed",
	}
	balance := s.post(acc, tx)
	s.archiveAll(ctx, []models.Transaction{tx})
	s.logger.Info("wallet refund", zap.String("user_id", userID), zap.Float64("amount", amount))
	return tx, balance, nil
}

// Summary totals the ledger by category and computes 30 day insights relative to now.
func (s *WalletService) Summary(ctx context.Context, userID string) (*WalletSummary, error) {
	txs, err := s.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &WalletSummary{Balance: balance}
	var spent, topups, refunds, bonuses, recent []float64
	cutoff := s.now().AddDate(0, 0, -30)
	for _, tx := range txs {
		switch tx.Type {
		case models.TransactionTypeCharge:
			spent = append(spent, -tx.Amount)
			if !tx.Timestamp.Before(cutoff) {
				recent = append(recent, -tx.Amount)
				if -tx.Amount > summary.Insights.MostExpensive {
					summary.Insights.MostExpensive = -tx.Amount
				}
			}
		case models.TransactionTypeTopUp:
			topups = append(topups, tx.Amount)
		case models.TransactionTypeRefund:
			refunds = append(refunds, tx.Amount)
		case models.TransactionTypeBonus:
			bonuses = append(bonuses, tx.Amount)
		}
	}
	summary.TotalSpent = energy.Sum2(spent...)
	summary.TotalTopUps = energy.Sum2(topups...)
	summary.TotalRefunds = energy.Sum2(refunds...)
	summary.TotalBonuses = energy.Sum2(bonuses...)
	summary.Insights.Spent = energy.Sum2(recent...)
	summary.Insights.SessionsCount = len(recent)
	if len(recent) > 0 {
		summary.Insights.AverageSession = energy.Round2(summary.Insights.Spent / float64(len(recent)))
	}
	return summary, nil
}

// Reconciled reports whether the ledger sums to the balance movement.
func (s *WalletService) Reconciled(_ context.Context, userID string) (bool, error) {
	acc, err := s.account(userID)
	if err != nil {
		return false, err
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	amounts := make([]float64, 0, len(acc.txs))
	for _, tx := range acc.txs {
		amounts = append(amounts, tx.Amount)
	}
	return energy.Sum2(amounts...) == energy.Sum2(acc.balance, -acc.initial), nil
}

func (s *WalletService) post(acc *account, entries ...models.Transaction) float64 {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	for _, tx := range entries {
		acc.balance = energy.Sum2(acc.balance, tx.Amount)
		acc.txs = append(acc.txs, tx)
	}
	return acc.balance
}

func (s *WalletService) archiveAll(ctx context.Context, entries []models.Transaction) {
	if s.archive == nil {
		return
	}
	for _, tx := range entries {
		if err := s.archive.ArchiveTransaction(ctx, tx); err != nil {
			s.logger.Warn("archive transaction failed", zap.String("transaction_id", tx.ID), zap.Error(err))
		}
	}
}

// TopUpOptions lists the preset amounts with their bonuses.
func TopUpOptions() []TopUpOption {
	return []TopUpOption{
		{Amount: 100},
		{Amount: 500, Bonus: 25, Popular: true},
		{Amount: 1000, Bonus: 75},
		{Amount: 2000, Bonus: 200},
		{Amount: 5000, Bonus: 750},
	}
}

// PaymentMethods lists accepted top-up instruments.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		{ID: "upi", Name: "UPI Payment", IsDefault: true},
		{ID: "card", Name: "Credit/Debit Card"},
		{ID: "netbanking", Name: "Net Banking"},
	}
}

func methodName(id string) string {
	for _, m := range PaymentMethods() {
		if m.ID == id {
			return m.Name
		}
	}
	return id
}

// TransactionFee returns the gateway fee for a top-up.
func TransactionFee(amount float64, method string) (float64, error) {
	switch method {
	case "upi":
		return 0, nil
	case "card":
		return energy.Round2(max(amount*0.02, 2)), nil
	case "netbanking":
		return energy.Round2(max(amount*0.015, 5)), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
	}
}

// TopUpBonus returns the bonus of the highest tier amount reaches.
func TopUpBonus(amount float64) float64 {
	for _, tier := range bonusTiers {
		if amount >= tier.Amount {
			return tier.Bonus
		}
	}
	return 0
}
