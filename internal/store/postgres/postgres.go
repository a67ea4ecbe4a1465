package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/store"
	"martpos/backend/internal/xid"
)

// txnIDMaxAttempts bounds the retry loop around the checkout transaction.
// Concurrent checkouts on the same day can collide on the sequential txn id
// or fail serialization; both are retried with a fresh sequence number.
const txnIDMaxAttempts = 5

// refundMaxAttempts bounds the retry loop around the refund transaction,
// which can lose serialization races against concurrent checkouts touching
// the same product rows.
const refundMaxAttempts = 3

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, req domain.ProductListRequest) (*domain.ProductListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 200 {
		req.Limit = 50
	}
	search := strings.TrimSpace(req.Search)

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM products
		WHERE active = true
			AND ($1 = '' OR category_id = $1)
			AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%')
	`, req.CategoryID, search).Scan(&total)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, description, COALESCE(category_id,''), unit_price_cents,
			quantity, low_stock_threshold, active, created_at, updated_at
		FROM products
		WHERE active = true
			AND ($1 = '' OR category_id = $1)
			AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%')
		ORDER BY name ASC
		LIMIT $3 OFFSET $4
	`, req.CategoryID, search, req.Limit, (req.Page-1)*req.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, req.Limit)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.UnitPriceCents, &p.Quantity, &p.LowStockThreshold, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.ProductListResponse{
		Products: products,
		Page:     req.Page,
		Limit:    req.Limit,
		Total:    total,
		Pages:    pageCount(total, req.Limit),
	}, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sku, name, description, COALESCE(category_id,''), unit_price_cents,
			quantity, low_stock_threshold, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.UnitPriceCents, &p.Quantity, &p.LowStockThreshold, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.UnitPriceCents < 1 || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.SKU == "" {
		product.SKU = strings.ToUpper(product.ID)
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt
	product.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, sku, name, description, category_id, unit_price_cents,
			quantity, low_stock_threshold, active, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.SKU, product.Name, product.Description, nullIfEmpty(product.CategoryID),
		product.UnitPriceCents, product.Quantity, product.LowStockThreshold, product.Active,
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.UnitPriceCents < 1 || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET sku = $2, name = $3, description = $4, category_id = $5, unit_price_cents = $6,
			quantity = $7, low_stock_threshold = $8, active = $9, updated_at = now()
		WHERE id = $1
	`, product.ID, product.SKU, product.Name, product.Description, nullIfEmpty(product.CategoryID),
		product.UnitPriceCents, product.Quantity, product.LowStockThreshold, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	updated.UpdatedAt = time.Now().UTC()
	return &updated, nil
}

// DeactivateProduct soft-deletes so past transactions keep a resolvable
// product reference.
func (s *Store) DeactivateProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET active = false, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, description, COALESCE(category_id,''), unit_price_cents,
			quantity, low_stock_threshold, active, created_at, updated_at
		FROM products
		WHERE active = true AND quantity <= low_stock_threshold
		ORDER BY quantity ASC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.UnitPriceCents, &p.Quantity, &p.LowStockThreshold, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
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
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	category.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, slug, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, category.ID, category.Name, category.Description, category.Slug, category.Active, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := category
	return &created, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, slug, active, created_at
		FROM categories
		WHERE active = true
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Slug, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateSale runs the whole checkout as one serializable transaction: stock
// validation, decrement, total math, payment check, txn id assignment, and
// the inserts either all land or none do. Retried on id collisions and
// serialization failures.
func (s *Store) CreateSale(ctx context.Context, draft store.SaleDraft) (*domain.Transaction, error) {
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
		draft.CreatedAt = time.Now().UTC()
	}

	var lastErr error
	for attempt := 0; attempt < txnIDMaxAttempts; attempt++ {
		tx, err := s.createSaleOnce(ctx, draft)
		if err == nil {
			return tx, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, retryExhausted("checkout", txnIDMaxAttempts, lastErr)
}

func (s *Store) createSaleOnce(ctx context.Context, draft store.SaleDraft) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	subtotalCents := int64(0)
	items := make([]domain.TransactionItem, 0, len(draft.Items))
	for _, line := range draft.Items {
		var p domain.Product
		err := pgTx.QueryRowContext(ctx, `
			SELECT id, name, unit_price_cents, quantity
			FROM products
			WHERE id = $1 AND active = true
			FOR UPDATE
		`, line.ProductID).Scan(&p.ID, &p.Name, &p.UnitPriceCents, &p.Quantity)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, &store.ProductNotFoundError{ProductID: line.ProductID}
			}
			return nil, err
		}

		if p.Quantity < line.Quantity {
			return nil, &store.InsufficientStockError{ProductName: p.Name, AvailableQty: p.Quantity}
		}

		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $1, updated_at = now()
			WHERE id = $2
		`, line.Quantity, p.ID)
		if err != nil {
			return nil, err
		}

		lineSubtotal := p.UnitPriceCents * int64(line.Quantity)
		subtotalCents += lineSubtotal
		items = append(items, domain.TransactionItem{
			ProductID:      p.ID,
			ProductName:    p.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: p.UnitPriceCents,
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

	// Same-day count drives the sequential suffix. The unique constraint on
	// txn_id catches the race where two checkouts see the same count.
	dayStart := dayStartUTC(draft.CreatedAt)
	var sameDay int
	err = pgTx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2
	`, dayStart, dayStart.Add(24*time.Hour)).Scan(&sameDay)
	if err != nil {
		return nil, err
	}
	txnID := xid.Txn(draft.CreatedAt, sameDay+1)

	result := domain.Transaction{
		TxnID:           txnID,
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

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (
			txn_id, cashier_id, shift_id, subtotal_cents, discount_cents, tax_cents,
			total_cents, amount_paid_cents, change_cents, status, refunded_amount_cents,
			notes, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,$11,$12)
	`, result.TxnID, result.CashierID, nullIfEmpty(result.ShiftID), result.SubtotalCents,
		result.DiscountCents, result.TaxCents, result.TotalCents, result.AmountPaidCents,
		result.ChangeCents, result.Status, result.Notes, result.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range result.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_items (txn_id, product_id, product_name, qty, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, result.TxnID, item.ProductID, item.ProductName, item.Quantity, item.UnitPriceCents, item.SubtotalCents)
		if err != nil {
			return nil, err
		}
	}

	for _, payment := range result.PaymentMethods {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_payments (txn_id, method, amount_cents)
			VALUES ($1,$2,$3)
		`, result.TxnID, payment.Method, payment.AmountCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &result, nil
}

// RefundSale restocks every line of the original sale regardless of the
// refund amount, so a partial refund still returns the full item quantities
// to inventory. Products deactivated since the sale are restocked too;
// products that no longer exist are skipped.
func (s *Store) RefundSale(ctx context.Context, txnID string, amountCents int64, reason string, adminID string, at time.Time) (*domain.Transaction, error) {
	if amountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var lastErr error
	for attempt := 0; attempt < refundMaxAttempts; attempt++ {
		tx, err := s.refundSaleOnce(ctx, txnID, amountCents, reason, adminID, at)
		if err == nil {
			return tx, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, retryExhausted("refund", refundMaxAttempts, lastErr)
}

func (s *Store) refundSaleOnce(ctx context.Context, txnID string, amountCents int64, reason string, adminID string, at time.Time) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var totalCents int64
	var refundedCents int64
	var status string
	err = pgTx.QueryRowContext(ctx, `
		SELECT total_cents, refunded_amount_cents, status
		FROM transactions
		WHERE txn_id = $1
		FOR UPDATE
	`, txnID).Scan(&totalCents, &refundedCents, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status == domain.TxStatusRefunded {
		return nil, &store.AlreadyRefundedError{TxnID: txnID}
	}

	maxRefund := totalCents - refundedCents
	if amountCents > maxRefund {
		return nil, &store.RefundExceedsAvailableError{MaxRefundCents: maxRefund}
	}

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT product_id, qty
		FROM transaction_items
		WHERE txn_id = $1
	`, txnID)
	if err != nil {
		return nil, err
	}
	type restockLine struct {
		productID string
		qty       int
	}
	lines := make([]restockLine, 0, 8)
	for itemRows.Next() {
		var line restockLine
		if err := itemRows.Scan(&line.productID, &line.qty); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	for _, line := range lines {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity + $1, updated_at = now()
			WHERE id = $2
		`, line.qty, line.productID)
		if err != nil {
			return nil, err
		}
	}

	newRefunded := refundedCents + amountCents
	nextStatus := domain.TxStatusPartialRefund
	if newRefunded >= totalCents {
		nextStatus = domain.TxStatusRefunded
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE transactions
		SET refunded_amount_cents = $2, status = $3, refund_reason = $4, refunded_by = $5, refunded_at = $6
		WHERE txn_id = $1
	`, txnID, newRefunded, nextStatus, reason, adminID, at)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetTransactionByTxnID(ctx, txnID)
}

func (s *Store) GetTransactionByTxnID(ctx context.Context, txnID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	var shiftID sql.NullString
	var refundReason sql.NullString
	var refundedBy sql.NullString
	var refundedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT txn_id, cashier_id, shift_id, subtotal_cents, discount_cents, tax_cents,
			total_cents, amount_paid_cents, change_cents, status, refunded_amount_cents,
			refund_reason, refunded_by, refunded_at, COALESCE(notes,''), created_at
		FROM transactions
		WHERE txn_id = $1
	`, txnID).Scan(
		&tx.TxnID,
		&tx.CashierID,
		&shiftID,
		&tx.SubtotalCents,
		&tx.DiscountCents,
		&tx.TaxCents,
		&tx.TotalCents,
		&tx.AmountPaidCents,
		&tx.ChangeCents,
		&tx.Status,
		&tx.RefundedAmountCents,
		&refundReason,
		&refundedBy,
		&refundedAt,
		&tx.Notes,
		&tx.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if shiftID.Valid {
		tx.ShiftID = shiftID.String
	}
	if refundReason.Valid {
		tx.RefundReason = refundReason.String
	}
	if refundedBy.Valid {
		tx.RefundedBy = refundedBy.String
	}
	if refundedAt.Valid {
		at := refundedAt.Time.UTC()
		tx.RefundedAt = &at
	}
	tx.CreatedAt = tx.CreatedAt.UTC()

	if err := s.attachTransactionDetails(ctx, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) attachTransactionDetails(ctx context.Context, tx *domain.Transaction) error {
	itemRows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, qty, unit_price_cents, subtotal_cents
		FROM transaction_items
		WHERE txn_id = $1
		ORDER BY id ASC
	`, tx.TxnID)
	if err != nil {
		return err
	}
	items := make([]domain.TransactionItem, 0, 8)
	for itemRows.Next() {
		var item domain.TransactionItem
		if err := itemRows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPriceCents, &item.SubtotalCents); err != nil {
			_ = itemRows.Close()
			return err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return err
	}
	_ = itemRows.Close()
	tx.Items = items

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT method, amount_cents
		FROM transaction_payments
		WHERE txn_id = $1
		ORDER BY id ASC
	`, tx.TxnID)
	if err != nil {
		return err
	}
	payments := make([]domain.PaymentMethod, 0, 2)
	for paymentRows.Next() {
		var payment domain.PaymentMethod
		if err := paymentRows.Scan(&payment.Method, &payment.AmountCents); err != nil {
			_ = paymentRows.Close()
			return err
		}
		payments = append(payments, payment)
	}
	if err := paymentRows.Err(); err != nil {
		_ = paymentRows.Close()
		return err
	}
	_ = paymentRows.Close()
	tx.PaymentMethods = payments

	return nil
}

func (s *Store) ListTransactions(ctx context.Context, req domain.TransactionListRequest) (*domain.TransactionListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 200 {
		req.Limit = 50
	}

	filter := `
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
			AND ($3 = '' OR cashier_id = $3)
			AND ($4 = '' OR status = $4)
	`

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions `+filter,
		nullTimePtr(req.From), nullTimePtr(req.To), req.CashierID, req.Status,
	).Scan(&total)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT txn_id, cashier_id, shift_id, subtotal_cents, discount_cents, tax_cents,
			total_cents, amount_paid_cents, change_cents, status, refunded_amount_cents,
			refund_reason, refunded_by, refunded_at, COALESCE(notes,''), created_at
		FROM transactions
	`+filter+`
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`, nullTimePtr(req.From), nullTimePtr(req.To), req.CashierID, req.Status, req.Limit, (req.Page-1)*req.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, req.Limit)
	for rows.Next() {
		var tx domain.Transaction
		var shiftID sql.NullString
		var refundReason sql.NullString
		var refundedBy sql.NullString
		var refundedAt sql.NullTime
		if err := rows.Scan(
			&tx.TxnID,
			&tx.CashierID,
			&shiftID,
			&tx.SubtotalCents,
			&tx.DiscountCents,
			&tx.TaxCents,
			&tx.TotalCents,
			&tx.AmountPaidCents,
			&tx.ChangeCents,
			&tx.Status,
			&tx.RefundedAmountCents,
			&refundReason,
			&refundedBy,
			&refundedAt,
			&tx.Notes,
			&tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		if shiftID.Valid {
			tx.ShiftID = shiftID.String
		}
		if refundReason.Valid {
			tx.RefundReason = refundReason.String
		}
		if refundedBy.Valid {
			tx.RefundedBy = refundedBy.String
		}
		if refundedAt.Valid {
			at := refundedAt.Time.UTC()
			tx.RefundedAt = &at
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range transactions {
		if err := s.attachTransactionDetails(ctx, &transactions[i]); err != nil {
			return nil, err
		}
	}

	return &domain.TransactionListResponse{
		Transactions: transactions,
		Page:         req.Page,
		Limit:        req.Limit,
		Total:        total,
		Pages:        pageCount(total, req.Limit),
	}, nil
}

func (s *Store) GetSalesReport(ctx context.Context, from time.Time, to time.Time) (*domain.SalesReport, error) {
	report := domain.SalesReport{
		From: from.UTC().Format(time.RFC3339),
		To:   to.UTC().Format(time.RFC3339),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*)::bigint,
			COALESCE(SUM(subtotal_cents),0)::bigint,
			COALESCE(SUM(discount_cents),0)::bigint,
			COALESCE(SUM(tax_cents),0)::bigint,
			COALESCE(SUM(total_cents),0)::bigint,
			COALESCE(SUM(refunded_amount_cents),0)::bigint
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2 AND status <> $3
	`, from, to, domain.TxStatusCancelled).Scan(
		&report.Transactions,
		&report.GrossSalesCents,
		&report.DiscountCents,
		&report.TaxCents,
		&report.NetSalesCents,
		&report.RefundedCents,
	)
	if err != nil {
		return nil, err
	}
	report.NetSalesCents -= report.RefundedCents
	if report.Transactions > 0 {
		report.AverageSaleCents = (report.NetSalesCents + report.RefundedCents) / report.Transactions
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(ti.qty),0)::bigint
		FROM transaction_items ti
		JOIN transactions t ON t.txn_id = ti.txn_id
		WHERE t.created_at >= $1 AND t.created_at < $2 AND t.status <> $3
	`, from, to, domain.TxStatusCancelled).Scan(&report.ItemsSold)
	if err != nil {
		return nil, err
	}

	return &report, nil
}

func (s *Store) GetTopProducts(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ti.product_id, ti.product_name,
			COALESCE(SUM(ti.qty),0)::bigint,
			COALESCE(SUM(ti.subtotal_cents),0)::bigint
		FROM transaction_items ti
		JOIN transactions t ON t.txn_id = ti.txn_id
		WHERE t.created_at >= $1 AND t.created_at < $2 AND t.status <> $3
		GROUP BY ti.product_id, ti.product_name
		ORDER BY SUM(ti.qty) DESC, ti.product_name ASC
		LIMIT $4
	`, from, to, domain.TxStatusCancelled, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.TopProduct, 0, limit)
	for rows.Next() {
		var p domain.TopProduct
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.QuantitySold, &p.RevenueCents); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.CashierID) == "" || shift.OpeningFloatCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.ClosedAt = nil
	shift.ClosingCashCents = 0

	// The partial unique index on (cashier_id) WHERE status = 'open' rejects
	// a second concurrent open shift.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (id, cashier_id, opening_float_cents, closing_cash_cents, status, opened_at, closed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, shift.ID, shift.CashierID, shift.OpeningFloatCents, shift.ClosingCashCents, shift.Status, shift.OpenedAt, nullTime(shift.ClosedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := shift
	return &saved, nil
}

func (s *Store) CloseActiveShift(ctx context.Context, cashierID string, closingCashCents int64, closedAt time.Time) (*domain.Shift, error) {
	if strings.TrimSpace(cashierID) == "" {
		return nil, store.ErrInvalidInput
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	var shift domain.Shift
	var closedAtNull sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		UPDATE shifts
		SET status = 'closed', closing_cash_cents = $2, closed_at = $3
		WHERE cashier_id = $1 AND status = 'open'
		RETURNING id, cashier_id, opening_float_cents, closing_cash_cents, status, opened_at, closed_at
	`, cashierID, closingCashCents, closedAt).Scan(
		&shift.ID,
		&shift.CashierID,
		&shift.OpeningFloatCents,
		&shift.ClosingCashCents,
		&shift.Status,
		&shift.OpenedAt,
		&closedAtNull,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	if closedAtNull.Valid {
		at := closedAtNull.Time.UTC()
		shift.ClosedAt = &at
	}
	return &shift, nil
}

func (s *Store) GetActiveShift(ctx context.Context, cashierID string) (*domain.Shift, error) {
	var shift domain.Shift
	var closedAtNull sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, cashier_id, opening_float_cents, closing_cash_cents, status, opened_at, closed_at
		FROM shifts
		WHERE cashier_id = $1 AND status = 'open'
		ORDER BY opened_at DESC
		LIMIT 1
	`, cashierID).Scan(
		&shift.ID,
		&shift.CashierID,
		&shift.OpeningFloatCents,
		&shift.ClosingCashCents,
		&shift.Status,
		&shift.OpenedAt,
		&closedAtNull,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	if closedAtNull.Valid {
		at := closedAtNull.Time.UTC()
		shift.ClosedAt = &at
	}
	return &shift, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorID, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.ID, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, role, active, created_at
		FROM app_users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isRetryable matches unique violations (txn id races), serialization
// failures, and deadlocks between carts locking product rows in different
// orders. All resolve on a re-run with fresh state.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" || pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// retryExhausted classifies a spent retry budget as a conflict so the edge
// can answer 409 without seeing driver internals.
func retryExhausted(op string, attempts int, lastErr error) error {
	return fmt.Errorf("%s did not settle after %d attempts (%v): %w", op, attempts, lastErr, store.ErrConflict)
}

func pageCount(total int, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func dayStartUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	return slug
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullTimePtr(val *time.Time) any {
	if val == nil {
		return nil
	}
	return val.UTC()
}
