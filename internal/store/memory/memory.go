package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
	"martpos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	categories      map[string]domain.Category
	transactions    map[string]*domain.Transaction
	shiftsByID      map[string]domain.Shift
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
	now             func() time.Time
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			ID:        xid.New("user"),
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		categories:      make(map[string]domain.Category),
		transactions:    make(map[string]*domain.Transaction),
		shiftsByID:      make(map[string]domain.Shift),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	categories := []domain.Category{
		{ID: "cat-grocery", Name: "Grocery", Slug: "grocery", Active: true, CreatedAt: now},
		{ID: "cat-beverage", Name: "Beverage", Slug: "beverage", Active: true, CreatedAt: now},
		{ID: "cat-snack", Name: "Snack", Slug: "snack", Active: true, CreatedAt: now},
		{ID: "cat-household", Name: "Household", Slug: "household", Active: true, CreatedAt: now},
	}
	for _, c := range categories {
		s.categories[c.ID] = c
	}

	products := []domain.Product{
		{ID: "prod-mie-01", SKU: "SKU-MIE-01", Name: "Mie Goreng Instan", CategoryID: "cat-grocery", UnitPriceCents: 3500, Quantity: 120, LowStockThreshold: 10},
		{ID: "prod-telur-01", SKU: "SKU-TELUR-01", Name: "Telur 10 Butir", CategoryID: "cat-grocery", UnitPriceCents: 26500, Quantity: 120, LowStockThreshold: 10},
		{ID: "prod-susu-01", SKU: "SKU-SUSU-01", Name: "Susu UHT 1L", CategoryID: "cat-grocery", UnitPriceCents: 18900, Quantity: 120, LowStockThreshold: 10},
		{ID: "prod-roti-01", SKU: "SKU-ROTI-01", Name: "Roti Tawar", CategoryID: "cat-grocery", UnitPriceCents: 17800, Quantity: 120, LowStockThreshold: 10},
		{ID: "prod-kopi-01", SKU: "SKU-KOPI-01", Name: "Kopi Sachet", CategoryID: "cat-beverage", UnitPriceCents: 2600, Quantity: 120, LowStockThreshold: 10},
		{ID: "prod-air-01", SKU: "SKU-AIR-01", Name: "Air Mineral 600ml", CategoryID: "cat-beverage", UnitPriceCents: 3900, Quantity: 120, LowStockThreshold: 10},
		{ID: "prod-keripik-01", SKU: "SKU-KERIPIK-01", Name: "Keripik Singkong", CategoryID: "cat-snack", UnitPriceCents: 12800, Quantity: 120, LowStockThreshold: 10},
		{ID: "prod-coklat-01", SKU: "SKU-COKLAT-01", Name: "Coklat Batang", CategoryID: "cat-snack", UnitPriceCents: 8600, Quantity: 120, LowStockThreshold: 10},
		{ID: "prod-sabun-01", SKU: "SKU-SABUN-01", Name: "Sabun Mandi", CategoryID: "cat-household", UnitPriceCents: 7400, Quantity: 120, LowStockThreshold: 10},
	}
	for _, p := range products {
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}

	return s
}

// SetClock overrides the store clock. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) ListProducts(_ context.Context, req domain.ProductListRequest) (*domain.ProductListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 200 {
		req.Limit = 50
	}
	search := strings.ToLower(strings.TrimSpace(req.Search))

	matched := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		if req.CategoryID != "" && p.CategoryID != req.CategoryID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && !strings.Contains(strings.ToLower(p.SKU), search) {
			continue
		}
		matched = append(matched, p)
	}
	slices.SortFunc(matched, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})

	total := len(matched)
	start := (req.Page - 1) * req.Limit
	if start > total {
		start = total
	}
	end := start + req.Limit
	if end > total {
		end = total
	}

	return &domain.ProductListResponse{
		Products: matched[start:end],
		Page:     req.Page,
		Limit:    req.Limit,
		Total:    total,
		Pages:    pageCount(total, req.Limit),
	}, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.UnitPriceCents < 1 || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.SKU == "" {
		product.SKU = strings.ToUpper(product.ID)
	}
	for _, existing := range s.products {
		if existing.SKU == product.SKU {
			return nil, store.ErrConflict
		}
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = s.now()
	}
	product.UpdatedAt = product.CreatedAt
	product.Active = true

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.UnitPriceCents < 1 || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}

	product.UpdatedAt = s.now()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeactivateProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return store.ErrNotFound
	}
	product.Active = false
	product.UpdatedAt = s.now()
	s.products[id] = product
	return nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.Active && p.LowStock() {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Quantity == b.Quantity {
			return strings.Compare(a.Name, b.Name)
		}
		return a.Quantity - b.Quantity
	})
	return products, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.Slug == "" {
		category.Slug = slugify(category.Name)
	}
	for _, existing := range s.categories {
		if existing.Slug == category.Slug {
			return nil, store.ErrConflict
		}
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = s.now()
	}
	category.Active = true

	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.Active {
			categories = append(categories, c)
		}
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return strings.Compare(a.Name, b.Name)
	})
	return categories, nil
}

// CreateSale mirrors the relational checkout: validate and decrement under
// one lock so a failed line leaves every product untouched.
func (s *Store) CreateSale(_ context.Context, draft store.SaleDraft) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(draft.Items) == 0 {
		return nil, store.ErrEmptyCart
	}
	for _, item := range draft.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
	}
	if draft.DiscountCents < 0 || draft.TaxCents < 0 || draft.AmountPaidCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = s.now()
	}

	// Validate every line before touching stock.
	subtotalCents := int64(0)
	items := make([]domain.TransactionItem, 0, len(draft.Items))
	for _, line := range draft.Items {
		product, exists := s.products[line.ProductID]
		if !exists || !product.Active {
			return nil, &store.ProductNotFoundError{ProductID: line.ProductID}
		}
		if product.Quantity < line.Quantity {
			return nil, &store.InsufficientStockError{ProductName: product.Name, AvailableQty: product.Quantity}
		}
		lineSubtotal := product.UnitPriceCents * int64(line.Quantity)
		subtotalCents += lineSubtotal
		items = append(items, domain.TransactionItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: product.UnitPriceCents,
			SubtotalCents:  lineSubtotal,
		})
	}

	totalCents := subtotalCents - draft.DiscountCents + draft.TaxCents
	if totalCents < 0 {
		return nil, &store.DiscountExceedsSubtotalError{SubtotalCents: subtotalCents, DiscountCents: draft.DiscountCents}
	}

	amountPaid := draft.AmountPaidCents
	changeCents := int64(0)
	if amountPaid == 0 {
		amountPaid = totalCents
	} else {
		if amountPaid < totalCents {
			return nil, &store.InsufficientPaymentError{RequiredCents: totalCents, ReceivedCents: amountPaid}
		}
		changeCents = amountPaid - totalCents
	}

	payments := draft.PaymentMethods
	if len(payments) == 0 {
		payments = []domain.PaymentMethod{{Method: "cash", AmountCents: totalCents}}
	}

	for _, line := range draft.Items {
		product := s.products[line.ProductID]
		product.Quantity -= line.Quantity
		product.UpdatedAt = draft.CreatedAt
		s.products[line.ProductID] = product
	}

	dayStart := dayStartUTC(draft.CreatedAt)
	sameDay := 0
	for _, tx := range s.transactions {
		if !tx.CreatedAt.Before(dayStart) && tx.CreatedAt.Before(dayStart.Add(24*time.Hour)) {
			sameDay++
		}
	}

	result := &domain.Transaction{
		TxnID:           xid.Txn(draft.CreatedAt, sameDay+1),
		CashierID:       draft.CashierID,
		ShiftID:         draft.ShiftID,
		Items:           items,
		SubtotalCents:   subtotalCents,
		DiscountCents:   draft.DiscountCents,
		TaxCents:        draft.TaxCents,
		TotalCents:      totalCents,
		PaymentMethods:  payments,
		AmountPaidCents: amountPaid,
		ChangeCents:     changeCents,
		Status:          domain.TxStatusCompleted,
		Notes:           draft.Notes,
		CreatedAt:       draft.CreatedAt.UTC(),
	}
	s.transactions[result.TxnID] = result

	saved := cloneTransaction(result)
	return saved, nil
}

func (s *Store) RefundSale(_ context.Context, txnID string, amountCents int64, reason string, adminID string, at time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if at.IsZero() {
		at = s.now()
	}

	tx, exists := s.transactions[txnID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if tx.Status == domain.TxStatusRefunded {
		return nil, &store.AlreadyRefundedError{TxnID: txnID}
	}

	maxRefund := tx.TotalCents - tx.RefundedAmountCents
	if amountCents > maxRefund {
		return nil, &store.RefundExceedsAvailableError{MaxRefundCents: maxRefund}
	}

	// Full snapshot restock regardless of refund amount. Missing products
	// are skipped.
	for _, item := range tx.Items {
		product, exists := s.products[item.ProductID]
		if !exists {
			continue
		}
		product.Quantity += item.Quantity
		product.UpdatedAt = at
		s.products[item.ProductID] = product
	}

	tx.RefundedAmountCents += amountCents
	if tx.RefundedAmountCents >= tx.TotalCents {
		tx.Status = domain.TxStatusRefunded
	} else {
		tx.Status = domain.TxStatusPartialRefund
	}
	tx.RefundReason = reason
	tx.RefundedBy = adminID
	refundedAt := at.UTC()
	tx.RefundedAt = &refundedAt

	return cloneTransaction(tx), nil
}

func (s *Store) GetTransactionByTxnID(_ context.Context, txnID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactions[txnID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, req domain.TransactionListRequest) (*domain.TransactionListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 200 {
		req.Limit = 50
	}

	matched := make([]*domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if req.From != nil && tx.CreatedAt.Before(*req.From) {
			continue
		}
		if req.To != nil && !tx.CreatedAt.Before(*req.To) {
			continue
		}
		if req.CashierID != "" && tx.CashierID != req.CashierID {
			continue
		}
		if req.Status != "" && tx.Status != req.Status {
			continue
		}
		matched = append(matched, tx)
	}
	slices.SortFunc(matched, func(a, b *domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.TxnID, a.TxnID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	total := len(matched)
	start := (req.Page - 1) * req.Limit
	if start > total {
		start = total
	}
	end := start + req.Limit
	if end > total {
		end = total
	}

	transactions := make([]domain.Transaction, 0, end-start)
	for _, tx := range matched[start:end] {
		transactions = append(transactions, *cloneTransaction(tx))
	}

	return &domain.TransactionListResponse{
		Transactions: transactions,
		Page:         req.Page,
		Limit:        req.Limit,
		Total:        total,
		Pages:        pageCount(total, req.Limit),
	}, nil
}

func (s *Store) GetSalesReport(_ context.Context, from time.Time, to time.Time) (*domain.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.SalesReport{
		From: from.UTC().Format(time.RFC3339),
		To:   to.UTC().Format(time.RFC3339),
	}
	for _, tx := range s.transactions {
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		if tx.Status == domain.TxStatusCancelled {
			continue
		}
		report.Transactions++
		report.GrossSalesCents += tx.SubtotalCents
		report.DiscountCents += tx.DiscountCents
		report.TaxCents += tx.TaxCents
		report.RefundedCents += tx.RefundedAmountCents
		report.NetSalesCents += tx.TotalCents - tx.RefundedAmountCents
		for _, item := range tx.Items {
			report.ItemsSold += int64(item.Quantity)
		}
	}
	if report.Transactions > 0 {
		report.AverageSaleCents = (report.NetSalesCents + report.RefundedCents) / report.Transactions
	}
	return &report, nil
}

func (s *Store) GetTopProducts(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 || limit > 100 {
		limit = 10
	}

	byProduct := make(map[string]*domain.TopProduct)
	for _, tx := range s.transactions {
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		if tx.Status == domain.TxStatusCancelled {
			continue
		}
		for _, item := range tx.Items {
			entry := byProduct[item.ProductID]
			if entry == nil {
				entry = &domain.TopProduct{ProductID: item.ProductID, ProductName: item.ProductName}
				byProduct[item.ProductID] = entry
			}
			entry.QuantitySold += int64(item.Quantity)
			entry.RevenueCents += item.SubtotalCents
		}
	}

	products := make([]domain.TopProduct, 0, len(byProduct))
	for _, entry := range byProduct {
		products = append(products, *entry)
	}
	slices.SortFunc(products, func(a, b domain.TopProduct) int {
		if a.QuantitySold == b.QuantitySold {
			return strings.Compare(a.ProductName, b.ProductName)
		}
		if a.QuantitySold > b.QuantitySold {
			return -1
		}
		return 1
	})
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (s *Store) CreateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(shift.CashierID) == "" || shift.OpeningFloatCents < 0 {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.shiftsByID {
		if existing.CashierID == shift.CashierID && existing.Status == domain.ShiftStatusOpen {
			return nil, store.ErrConflict
		}
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = s.now()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.ClosedAt = nil
	shift.ClosingCashCents = 0

	s.shiftsByID[shift.ID] = shift
	saved := shift
	return &saved, nil
}

func (s *Store) CloseActiveShift(_ context.Context, cashierID string, closingCashCents int64, closedAt time.Time) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(cashierID) == "" {
		return nil, store.ErrInvalidInput
	}
	if closedAt.IsZero() {
		closedAt = s.now()
	}

	for id, shift := range s.shiftsByID {
		if shift.CashierID != cashierID || shift.Status != domain.ShiftStatusOpen {
			continue
		}
		shift.Status = domain.ShiftStatusClosed
		shift.ClosingCashCents = closingCashCents
		at := closedAt.UTC()
		shift.ClosedAt = &at
		s.shiftsByID[id] = shift
		closed := shift
		return &closed, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetActiveShift(_ context.Context, cashierID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, shift := range s.shiftsByID {
		if shift.CashierID == cashierID && shift.Status == domain.ShiftStatusOpen {
			active := shift
			return &active, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}

	logs := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}

	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneTransaction(tx *domain.Transaction) *domain.Transaction {
	clone := *tx
	clone.Items = slices.Clone(tx.Items)
	clone.PaymentMethods = slices.Clone(tx.PaymentMethods)
	if tx.RefundedAt != nil {
		at := *tx.RefundedAt
		clone.RefundedAt = &at
	}
	return &clone
}

func pageCount(total int, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	return slug
}

func dayStartUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
