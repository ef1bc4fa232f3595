package sqlite

import (
	"context"
	"database/sql"

	"github.com/ecocampus/ecocampus-server/internal/domain"
	domainerrors "github.com/ecocampus/ecocampus-server/internal/errors"
	"github.com/ecocampus/ecocampus-server/internal/id"
)

// ListStores returns every vendor.
func (s *Store) ListStores(ctx context.Context) ([]domain.Store, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, logo_url FROM stores ORDER BY name`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list stores")
	}
	defer rows.Close()

	var out []domain.Store
	for rows.Next() {
		var (
			st   domain.Store
			logo sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.Name, &logo); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan store")
		}
		st.LogoURL = logo.String
		out = append(out, st)
	}
	return out, rows.Err()
}

const productSelect = `
	SELECT p.id, p.store_id, st.name, p.name, p.description, p.image_url,
		p.ecopoints_cost, p.original_price, p.stock,
		(SELECT COUNT(*) FROM orders o WHERE o.product_id = p.id)
	FROM products p JOIN stores st ON st.id = p.store_id`

func scanProduct(sc scanner) (*domain.Product, error) {
	var (
		p   domain.Product
		img sql.NullString
	)
	if err := sc.Scan(&p.ID, &p.StoreID, &p.StoreName, &p.Name, &p.Description, &img,
		&p.EcoPointsCost, &p.OriginalPrice, &p.Stock, &p.OrderCount); err != nil {
		return nil, err
	}
	p.ImageURL = img.String
	return &p, nil
}

// ListProducts returns active products with their store names.
func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, productSelect+` WHERE p.is_active = 1 ORDER BY p.name`)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list products")
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan product")
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetProduct returns one product.
func (s *Store) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, productSelect+` WHERE p.id = ?`, productID))
	if err != nil {
		return nil, notFoundOr(err, "product not found")
	}
	return p, nil
}

// CreateOrder debits the product cost, takes one unit of stock and records the order.
func (s *Store) CreateOrder(ctx context.Context, userID, productID string) (*domain.Order, error) {
	orderID, err := id.Generate(id.PrefixOrder)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate order id")
	}
	ticket, err := id.Ticket()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate ticket")
	}

	var order domain.Order
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := scanProduct(tx.QueryRowContext(ctx, productSelect+` WHERE p.id = ? AND p.is_active = 1`, productID))
		if err != nil {
			return notFoundOr(err, "product not found")
		}
		if p.Stock <= 0 {
			return domainerrors.Conflict("out of stock")
		}

		var balance int
		if err := tx.QueryRowContext(ctx, `SELECT current_points FROM users WHERE id = ?`, userID).Scan(&balance); err != nil {
			return notFoundOr(err, "profile not found")
		}
		if balance < p.EcoPointsCost {
			return domainerrors.InsufficientPoints(p.EcoPointsCost, balance)
		}

		now := s.now()
		order = domain.Order{
			ID:          orderID,
			UserID:      userID,
			ProductID:   p.ID,
			ProductName: p.Name,
			StoreName:   p.StoreName,
			ImageURL:    p.ImageURL,
			Status:      domain.OrderPending,
			TicketCode:  ticket,
			PointsSpent: p.EcoPointsCost,
			CreatedAt:   now,
		}

		if _, err := tx.ExecContext(ctx, `UPDATE products SET stock = stock - 1 WHERE id = ?`, p.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, product_id, status, ticket_code, points_spent, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			order.ID, order.UserID, order.ProductID, order.Status, order.TicketCode,
			order.PointsSpent, formatTime(now),
		); err != nil {
			return err
		}
		_, err = insertLedgerTx(ctx, tx, domain.LedgerEntry{
			UserID:      userID,
			SourceType:  domain.SourceOrder,
			SourceID:    order.ID,
			Description: "Purchased: " + p.Name,
			PointsDelta: -p.EcoPointsCost,
			CreatedAt:   now,
		})
		return err
	})
	if err != nil {
		var de *domainerrors.Error
		if domainerrors.As(err, &de) {
			return nil, err
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "create order")
	}

	s.publish(domain.ChangeInsert, "orders", nil, orderRow(&order))
	s.publishUser(ctx, userID)
	return &order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *Store) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.user_id, o.product_id, p.name, st.name, p.image_url,
			o.status, o.ticket_code, o.points_spent, o.created_at
		FROM orders o
		JOIN products p ON p.id = o.product_id
		JOIN stores st ON st.id = p.store_id
		WHERE o.user_id = ?
		ORDER BY o.created_at DESC, o.rowid DESC`, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list orders")
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var (
			o       domain.Order
			img     sql.NullString
			created string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.ProductID, &o.ProductName, &o.StoreName, &img,
			&o.Status, &o.TicketCode, &o.PointsSpent, &created); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "scan order")
		}
		o.ImageURL = img.String
		if o.CreatedAt, err = parseTime(created); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse order time")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetOrderStatus moves an order along; vendors confirm and mark collection.
// Cancelling refunds the points and returns the stock.
func (s *Store) SetOrderStatus(ctx context.Context, orderID, status string) error {
	var userID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			prev, productID string
			spent           int
		)
		if err := tx.QueryRowContext(ctx,
			`SELECT user_id, product_id, status, points_spent FROM orders WHERE id = ?`, orderID,
		).Scan(&userID, &productID, &prev, &spent); err != nil {
			return notFoundOr(err, "order not found")
		}
		if prev == domain.OrderCancelled || prev == domain.OrderCollected {
			return domainerrors.Conflictf("order already %s", prev)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, status, orderID); err != nil {
			return err
		}
		if status != domain.OrderCancelled {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE products SET stock = stock + 1 WHERE id = ?`, productID); err != nil {
			return err
		}
		_, err := insertLedgerTx(ctx, tx, domain.LedgerEntry{
			UserID:      userID,
			SourceType:  domain.SourceOrder,
			SourceID:    orderID,
			Description: "Order refund",
			PointsDelta: spent,
			CreatedAt:   s.now(),
		})
		return err
	})
	if err != nil {
		var de *domainerrors.Error
		if domainerrors.As(err, &de) {
			return err
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "set order status")
	}

	s.publish(domain.ChangeUpdate, "orders", nil, map[string]any{
		"id": orderID, "user_id": userID, "status": status,
	})
	if status == domain.OrderCancelled {
		s.publishUser(ctx, userID)
	}
	return nil
}

func orderRow(o *domain.Order) map[string]any {
	return map[string]any{
		"id":          o.ID,
		"user_id":     o.UserID,
		"product_id":  o.ProductID,
		"status":      o.Status,
		"ticket_code": o.TicketCode,
	}
}
