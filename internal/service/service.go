package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"martpos/backend/internal/domain"
	"martpos/backend/internal/metrics"
	"martpos/backend/internal/store"
)

var (
	ErrAdminRequired   = errors.New("admin role required")
	ErrCashierRequired = errors.New("authenticated cashier required")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo    store.Repository
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(repo store.Repository, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Service{repo: repo, logger: logger, metrics: m}
}

func (s *Service) ListProducts(ctx context.Context, req domain.ProductListRequest) (*domain.ProductListResponse, error) {
	return s.repo.ListProducts(ctx, req)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetProductByID(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, ErrAdminRequired
	}

	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.Name == "" || req.UnitPriceCents < 1 || req.Quantity < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	threshold := 10
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		threshold = *req.LowStockThreshold
	}

	product := domain.Product{
		SKU:               req.SKU,
		Name:              req.Name,
		Description:       strings.TrimSpace(req.Description),
		CategoryID:        req.CategoryID,
		UnitPriceCents:    req.UnitPriceCents,
		Quantity:          req.Quantity,
		LowStockThreshold: threshold,
		Active:            true,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,qty=%d", created.Name, created.UnitPriceCents, created.Quantity))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, ErrAdminRequired
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		updated.CategoryID = *req.CategoryID
	}
	if req.UnitPriceCents != nil {
		if *req.UnitPriceCents < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.UnitPriceCents = *req.UnitPriceCents
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Quantity = *req.Quantity
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,price=%d,qty=%d", saved.Active, saved.UnitPriceCents, saved.Quantity))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrAdminRequired
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}

	if err := s.repo.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) ListLowStockProducts(ctx context.Context) (domain.LowStockResponse, error) {
	products, err := s.repo.ListLowStockProducts(ctx)
	if err != nil {
		return domain.LowStockResponse{}, err
	}
	return domain.LowStockResponse{Products: products}, nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Category{}, ErrAdminRequired
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return domain.Category{}, err
	}

	s.logAudit(ctx, "category_create", "category", created.ID, created.Name)
	return *created, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateSale is the checkout entry point. All stock and payment validation
// happens inside the repository transaction; this layer attaches the acting
// cashier, the open shift if one exists, and the bookkeeping around the call.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.SaleResponse{}, ErrCashierRequired
	}

	draft := store.SaleDraft{
		CashierID:       actor.ID,
		Items:           req.Items,
		DiscountCents:   req.DiscountCents,
		TaxCents:        req.TaxCents,
		PaymentMethods:  req.PaymentMethods,
		AmountPaidCents: req.AmountPaidCents,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       time.Now().UTC(),
	}
	if shift, err := s.repo.GetActiveShift(ctx, actor.ID); err == nil {
		draft.ShiftID = shift.ID
	}

	tx, err := s.repo.CreateSale(ctx, draft)
	if err != nil {
		s.metrics.SaleFailures.WithLabelValues(saleFailureReason(err)).Inc()
		s.logger.Warn("sale rejected",
			zap.String("cashier", actor.Username),
			zap.String("reason", saleFailureReason(err)),
			zap.Error(err),
		)
		return domain.SaleResponse{}, err
	}

	s.metrics.SalesTotal.Inc()
	s.metrics.SaleAmountCents.Add(float64(tx.TotalCents))
	s.logger.Info("sale completed",
		zap.String("txn_id", tx.TxnID),
		zap.String("cashier", actor.Username),
		zap.Int64("total_cents", tx.TotalCents),
		zap.Int("items", len(tx.Items)),
	)
	s.logAudit(ctx, "sale_create", "transaction", tx.TxnID, fmt.Sprintf("total=%d,items=%d", tx.TotalCents, len(tx.Items)))

	return domain.SaleResponse{Transaction: *tx, ChangeCents: tx.ChangeCents}, nil
}

// RefundSale applies a refund against an existing transaction. Caller
// authorization is enforced at the transport layer; the engine itself only
// cares about amounts and state.
func (s *Service) RefundSale(ctx context.Context, txnID string, req domain.RefundRequest) (domain.RefundResponse, error) {
	actor, _ := ActorFromContext(ctx)

	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return domain.RefundResponse{}, store.ErrInvalidInput
	}

	tx, err := s.repo.RefundSale(ctx, txnID, req.RefundAmountCents, strings.TrimSpace(req.RefundReason), actor.ID, time.Now().UTC())
	if err != nil {
		s.logger.Warn("refund rejected",
			zap.String("txn_id", txnID),
			zap.Int64("amount_cents", req.RefundAmountCents),
			zap.Error(err),
		)
		return domain.RefundResponse{}, err
	}

	s.metrics.RefundsTotal.Inc()
	s.metrics.RefundAmountCents.Add(float64(req.RefundAmountCents))
	s.logger.Info("refund processed",
		zap.String("txn_id", tx.TxnID),
		zap.Int64("amount_cents", req.RefundAmountCents),
		zap.String("status", tx.Status),
	)
	s.logAudit(ctx, "sale_refund", "transaction", tx.TxnID, fmt.Sprintf("amount=%d,status=%s", req.RefundAmountCents, tx.Status))

	return domain.RefundResponse{Transaction: *tx}, nil
}

func (s *Service) GetTransaction(ctx context.Context, txnID string) (*domain.Transaction, error) {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.repo.GetTransactionByTxnID(ctx, txnID)
	if err != nil {
		return nil, err
	}

	// Cashiers may only read their own ledger entries.
	if actor, ok := ActorFromContext(ctx); ok && actor.Role == domain.RoleCashier && tx.CashierID != actor.ID {
		return nil, store.ErrNotFound
	}
	return tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.TransactionListRequest) (*domain.TransactionListResponse, error) {
	if actor, ok := ActorFromContext(ctx); ok && actor.Role == domain.RoleCashier {
		req.CashierID = actor.ID
	}
	return s.repo.ListTransactions(ctx, req)
}

func (s *Service) SalesReport(ctx context.Context, from time.Time, to time.Time) (*domain.SalesReport, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, ErrAdminRequired
	}
	if !from.Before(to) {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetSalesReport(ctx, from, to)
}

func (s *Service) TopProducts(ctx context.Context, from time.Time, to time.Time, limit int) (domain.TopProductsResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.TopProductsResponse{}, ErrAdminRequired
	}
	if !from.Before(to) {
		return domain.TopProductsResponse{}, store.ErrInvalidInput
	}

	products, err := s.repo.GetTopProducts(ctx, from, to, limit)
	if err != nil {
		return domain.TopProductsResponse{}, err
	}
	return domain.TopProductsResponse{
		From:     from.UTC().Format(time.RFC3339),
		To:       to.UTC().Format(time.RFC3339),
		Products: products,
	}, nil
}

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.ShiftResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.ShiftResponse{}, ErrCashierRequired
	}
	if req.OpeningFloatCents < 0 {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}

	saved, err := s.repo.CreateShift(ctx, domain.Shift{
		CashierID:         actor.ID,
		OpeningFloatCents: req.OpeningFloatCents,
	})
	if err != nil {
		return domain.ShiftResponse{}, err
	}

	s.logAudit(ctx, "shift_open", "shift", saved.ID, fmt.Sprintf("opening_float=%d", req.OpeningFloatCents))
	return domain.ShiftResponse{Shift: *saved}, nil
}

func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.ShiftResponse{}, ErrCashierRequired
	}
	if req.ClosingCashCents < 0 {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}

	closed, err := s.repo.CloseActiveShift(ctx, actor.ID, req.ClosingCashCents, time.Now().UTC())
	if err != nil {
		return domain.ShiftResponse{}, err
	}

	s.logAudit(ctx, "shift_close", "shift", closed.ID, fmt.Sprintf("closing_cash=%d", req.ClosingCashCents))
	return domain.ShiftResponse{Shift: *closed}, nil
}

func (s *Service) GetActiveShift(ctx context.Context) (domain.ShiftResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.ShiftResponse{}, ErrCashierRequired
	}

	active, err := s.repo.GetActiveShift(ctx, actor.ID)
	if err != nil {
		return domain.ShiftResponse{}, err
	}
	return domain.ShiftResponse{Shift: *active}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, ErrAdminRequired
	}

	day, err := parseDay(date)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListAuditLogs(ctx, day, day.Add(24*time.Hour), limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{ID: "system", Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err),
		)
	}
}

func saleFailureReason(err error) string {
	var notFound *store.ProductNotFoundError
	var noStock *store.InsufficientStockError
	var underpaid *store.InsufficientPaymentError
	switch {
	case errors.Is(err, store.ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &noStock):
		return "insufficient_stock"
	case errors.As(err, &underpaid):
		return "insufficient_payment"
	case errors.Is(err, store.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

func parseDay(date string) (time.Time, error) {
	if date == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", date)
}
