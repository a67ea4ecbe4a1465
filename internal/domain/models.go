package domain

import "time"

// Category groups products for browsing and reporting.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Slug        string    `json:"slug"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Product carries the authoritative on-hand quantity. Quantity is mutated
// by the sale/refund engines and by admin edits, and is never negative.
type Product struct {
	ID                string    `json:"id"`
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	CategoryID        string    `json:"category_id,omitempty"`
	UnitPriceCents    int64     `json:"unit_price_cents"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LowStock reports whether on-hand quantity is at or below the threshold.
func (p Product) LowStock() bool {
	return p.Quantity <= p.LowStockThreshold
}

type ProductCreateRequest struct {
	SKU               string `json:"sku,omitempty"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	CategoryID        string `json:"category_id,omitempty"`
	UnitPriceCents    int64  `json:"unit_price_cents"`
	Quantity          int    `json:"quantity"`
	LowStockThreshold *int   `json:"low_stock_threshold,omitempty"`
}

type ProductUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	Description       *string `json:"description,omitempty"`
	CategoryID        *string `json:"category_id,omitempty"`
	UnitPriceCents    *int64  `json:"unit_price_cents,omitempty"`
	Quantity          *int    `json:"quantity,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
	Active            *bool   `json:"active,omitempty"`
}

type ProductListRequest struct {
	Page       int
	Limit      int
	CategoryID string
	Search     string
}

type ProductListResponse struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Total    int       `json:"total"`
	Pages    int       `json:"pages"`
}

// PaymentMethod is a labeled amount. Amounts are recorded as presented and
// are not reconciled against the transaction total.
type PaymentMethod struct {
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
}

// TransactionItem snapshots name and price at sale time so receipts stay
// stable even if the product is later renamed or deleted.
type TransactionItem struct {
	ProductID      string `json:"product"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

const (
	TxStatusCompleted     = "completed"
	TxStatusRefunded      = "refunded"
	TxStatusPartialRefund = "partial_refund"
	TxStatusCancelled     = "cancelled"
)

// Transaction is one checkout event. Created whole by the sale engine and
// mutated afterwards only by the refund engine; never deleted.
type Transaction struct {
	TxnID               string            `json:"transaction_id"`
	CashierID           string            `json:"cashier"`
	ShiftID             string            `json:"shift_id,omitempty"`
	Items               []TransactionItem `json:"items"`
	SubtotalCents       int64             `json:"subtotal_cents"`
	DiscountCents       int64             `json:"discount_cents"`
	TaxCents            int64             `json:"tax_cents"`
	TotalCents          int64             `json:"total_cents"`
	PaymentMethods      []PaymentMethod   `json:"payment_methods"`
	AmountPaidCents     int64             `json:"amount_paid_cents"`
	ChangeCents         int64             `json:"change_cents"`
	Status              string            `json:"status"`
	RefundedAmountCents int64             `json:"refunded_amount_cents"`
	RefundReason        string            `json:"refund_reason,omitempty"`
	RefundedBy          string            `json:"refunded_by,omitempty"`
	RefundedAt          *time.Time        `json:"refunded_at,omitempty"`
	Notes               string            `json:"notes,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// NetCents is the total remaining after refunds.
func (t Transaction) NetCents() int64 {
	return t.TotalCents - t.RefundedAmountCents
}

type SaleItemInput struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// SaleRequest is the checkout input. AmountPaidCents of zero means "paid
// exactly the total" (the non-cash flow where change is meaningless).
type SaleRequest struct {
	Items           []SaleItemInput `json:"items"`
	DiscountCents   int64           `json:"discount_cents"`
	TaxCents        int64           `json:"tax_cents"`
	PaymentMethods  []PaymentMethod `json:"payment_methods,omitempty"`
	AmountPaidCents int64           `json:"amount_paid_cents"`
	Notes           string          `json:"notes,omitempty"`
}

type SaleResponse struct {
	Transaction Transaction `json:"transaction"`
	ChangeCents int64       `json:"change_cents"`
}

type RefundRequest struct {
	RefundAmountCents int64  `json:"refund_amount_cents"`
	RefundReason      string `json:"refund_reason"`
}

type RefundResponse struct {
	Transaction Transaction `json:"transaction"`
}

type TransactionListRequest struct {
	From      *time.Time
	To        *time.Time
	CashierID string
	Status    string
	Page      int
	Limit     int
}

type TransactionListResponse struct {
	Transactions []Transaction `json:"transactions"`
	Page         int           `json:"page"`
	Limit        int           `json:"limit"`
	Total        int           `json:"total"`
	Pages        int           `json:"pages"`
}

type SalesReport struct {
	From             string `json:"from"`
	To               string `json:"to"`
	Transactions     int64  `json:"transactions"`
	GrossSalesCents  int64  `json:"gross_sales_cents"`
	DiscountCents    int64  `json:"discount_cents"`
	TaxCents         int64  `json:"tax_cents"`
	RefundedCents    int64  `json:"refunded_cents"`
	NetSalesCents    int64  `json:"net_sales_cents"`
	AverageSaleCents int64  `json:"average_sale_cents"`
	ItemsSold        int64  `json:"items_sold"`
}

type TopProduct struct {
	ProductID    string `json:"product"`
	ProductName  string `json:"product_name"`
	QuantitySold int64  `json:"quantity_sold"`
	RevenueCents int64  `json:"revenue_cents"`
}

type TopProductsResponse struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Products []TopProduct `json:"products"`
}

type LowStockResponse struct {
	Products []Product `json:"products"`
}

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

type Shift struct {
	ID                string     `json:"id"`
	CashierID         string     `json:"cashier_id"`
	OpeningFloatCents int64      `json:"opening_float_cents"`
	ClosingCashCents  int64      `json:"closing_cash_cents,omitempty"`
	Status            string     `json:"status"`
	OpenedAt          time.Time  `json:"opened_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
}

type ShiftOpenRequest struct {
	OpeningFloatCents int64 `json:"opening_float_cents"`
}

type ShiftCloseRequest struct {
	ClosingCashCents int64 `json:"closing_cash_cents"`
}

type ShiftResponse struct {
	Shift Shift `json:"shift"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated caller attached to the request context.
type Actor struct {
	ID       string
	Username string
	Role     string
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        string
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
