package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"martpos/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyCart    = errors.New("transaction must have at least one item")
)

// ProductNotFoundError is returned when a sale references a product id that
// does not exist or is inactive.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product not found: %s", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientStockError reports the shortfall for a single line item. The
// sale engine stops at the first shortage it finds.
type InsufficientStockError struct {
	ProductName  string
	AvailableQty int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d", e.ProductName, e.AvailableQty)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInvalidInput }

// DiscountExceedsSubtotalError is returned when the discount drives the
// computed total below zero. Totals and paid amounts never go negative.
type DiscountExceedsSubtotalError struct {
	SubtotalCents int64
	DiscountCents int64
}

func (e *DiscountExceedsSubtotalError) Error() string {
	return fmt.Sprintf("Discount exceeds sale subtotal. Subtotal: %d, Discount: %d", e.SubtotalCents, e.DiscountCents)
}

func (e *DiscountExceedsSubtotalError) Is(target error) bool { return target == ErrInvalidInput }

// InsufficientPaymentError is returned when the tendered amount is below the
// computed total.
type InsufficientPaymentError struct {
	RequiredCents int64
	ReceivedCents int64
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("Insufficient payment. Required: %d, Received: %d", e.RequiredCents, e.ReceivedCents)
}

func (e *InsufficientPaymentError) Is(target error) bool { return target == ErrInvalidInput }

// AlreadyRefundedError is returned when a refund targets a transaction whose
// status is already refunded.
type AlreadyRefundedError struct {
	TxnID string
}

func (e *AlreadyRefundedError) Error() string {
	return "Transaction already refunded"
}

func (e *AlreadyRefundedError) Is(target error) bool { return target == ErrConflict }

// RefundExceedsAvailableError is returned when the requested refund amount
// would push cumulative refunds past the transaction total.
type RefundExceedsAvailableError struct {
	MaxRefundCents int64
}

func (e *RefundExceedsAvailableError) Error() string {
	return fmt.Sprintf("Refund amount exceeds available amount. Max: %d", e.MaxRefundCents)
}

func (e *RefundExceedsAvailableError) Is(target error) bool { return target == ErrInvalidInput }

// SaleDraft is the validated checkout input handed to the storage layer,
// which performs the stock check, decrement, id assignment, and insert as
// one atomic unit.
type SaleDraft struct {
	CashierID       string
	ShiftID         string
	Items           []domain.SaleItemInput
	DiscountCents   int64
	TaxCents        int64
	PaymentMethods  []domain.PaymentMethod
	AmountPaidCents int64
	Notes           string
	CreatedAt       time.Time
}

type Repository interface {
	ListProducts(ctx context.Context, req domain.ProductListRequest) (*domain.ProductListResponse, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeactivateProduct(ctx context.Context, id string) error
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateSale(ctx context.Context, draft SaleDraft) (*domain.Transaction, error)
	RefundSale(ctx context.Context, txnID string, amountCents int64, reason string, adminID string, at time.Time) (*domain.Transaction, error)
	GetTransactionByTxnID(ctx context.Context, txnID string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, req domain.TransactionListRequest) (*domain.TransactionListResponse, error)
	GetSalesReport(ctx context.Context, from time.Time, to time.Time) (*domain.SalesReport, error)
	GetTopProducts(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error)
	CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	CloseActiveShift(ctx context.Context, cashierID string, closingCashCents int64, closedAt time.Time) (*domain.Shift, error)
	GetActiveShift(ctx context.Context, cashierID string) (*domain.Shift, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
