package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sjawhar/roomline/internal/catalog"
	"github.com/sjawhar/roomline/internal/order"
)

func (s *SQLiteStore) SaveOrder(o order.Order) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO orders(reference, call_id, room_number, order_type, delivery_timing, special_instructions,
			total_amount, status, guest_email, language, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Reference,
		o.CallID,
		o.RoomNumber,
		string(o.OrderType),
		string(o.DeliveryTiming),
		o.SpecialInstructions,
		o.TotalAmount,
		string(o.Status),
		o.GuestEmail,
		o.Language,
		formatTime(o.CreatedAt),
		formatTime(o.UpdatedAt),
	); err != nil {
		return fmt.Errorf("insert order %s: %w", o.Reference, err)
	}

	for i, item := range o.Items {
		if _, err := tx.Exec(
			`INSERT INTO order_items(order_ref, position, name, description, quantity, unit_price) VALUES(?, ?, ?, ?, ?, ?)`,
			o.Reference,
			i,
			item.Name,
			item.Description,
			item.Quantity,
			item.UnitPrice,
		); err != nil {
			return fmt.Errorf("insert item for order %s: %w", o.Reference, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order %s: %w", o.Reference, err)
	}
	return nil
}

const orderColumns = `reference, call_id, room_number, order_type, delivery_timing, special_instructions,
	total_amount, status, guest_email, language, created_at, updated_at`

func scanOrder(row rowScanner) (order.Order, error) {
	var o order.Order
	var orderType, timing, status, createdAt, updatedAt string
	if err := row.Scan(&o.Reference, &o.CallID, &o.RoomNumber, &orderType, &timing, &o.SpecialInstructions,
		&o.TotalAmount, &status, &o.GuestEmail, &o.Language, &createdAt, &updatedAt); err != nil {
		return order.Order{}, err
	}
	o.OrderType = catalog.ParseOr(orderType, catalog.RoomService)
	o.DeliveryTiming = order.DeliveryTiming(timing)
	o.Status = order.Status(status)

	var err error
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return order.Order{}, fmt.Errorf("parse order created_at: %w", err)
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return order.Order{}, fmt.Errorf("parse order updated_at: %w", err)
	}
	return o, nil
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

func getOrder(q queryer, ref string) (order.Order, error) {
	o, err := scanOrder(q.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE reference = ?`, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, fmt.Errorf("query order %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("query order %s: %w", ref, err)
	}

	items, err := orderItems(q, ref)
	if err != nil {
		return order.Order{}, err
	}
	o.Items = items
	return o, nil
}

func orderItems(q queryer, ref string) ([]order.Item, error) {
	rows, err := q.Query(
		`SELECT name, description, quantity, unit_price FROM order_items WHERE order_ref = ? ORDER BY position ASC`,
		ref,
	)
	if err != nil {
		return nil, fmt.Errorf("query items for order %s: %w", ref, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]order.Item, 0, 4)
	for rows.Next() {
		var item order.Item
		if err := rows.Scan(&item.Name, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan item for order %s: %w", ref, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items for order %s: %w", ref, err)
	}
	return items, nil
}

func (s *SQLiteStore) GetOrder(ref string) (order.Order, error) {
	return getOrder(s.db, ref)
}

// UpdateOrderStatus writes the new status and a history row in one
// transaction and returns the updated order.
func (s *SQLiteStore) UpdateOrderStatus(ref string, status order.Status, changedBy string, at time.Time) (order.Order, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return order.Order{}, fmt.Errorf("begin update order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRow(`SELECT status FROM orders WHERE reference = ?`, ref).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, fmt.Errorf("update order %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("read order %s status: %w", ref, err)
	}

	if _, err := tx.Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE reference = ?`,
		string(status),
		formatTime(at),
		ref,
	); err != nil {
		return order.Order{}, fmt.Errorf("update order %s: %w", ref, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO order_status_history(order_ref, from_status, to_status, changed_by, changed_at) VALUES(?, ?, ?, ?, ?)`,
		ref,
		current,
		string(status),
		changedBy,
		formatTime(at),
	); err != nil {
		return order.Order{}, fmt.Errorf("record status change for order %s: %w", ref, err)
	}

	updated, err := getOrder(tx, ref)
	if err != nil {
		return order.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, fmt.Errorf("commit order %s status: %w", ref, err)
	}
	return updated, nil
}

// ListOrders returns orders matching f, newest first.
func (s *SQLiteStore) ListOrders(f order.Filter) ([]order.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.RoomNumber != "" {
		where = append(where, "room_number = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(f.RoomNumber)))
	}
	if f.Date != "" {
		where = append(where, "substr(created_at, 1, 10) = ?")
		args = append(args, f.Date)
	}
	if f.CallID != "" {
		where = append(where, "call_id = ?")
		args = append(args, f.CallID)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, reference ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders := make([]order.Order, 0, 16)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	_ = rows.Close()

	// Items are loaded after the order cursor is closed; the pool holds a
	// single connection.
	for i := range orders {
		items, err := orderItems(s.db, orders[i].Reference)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (s *SQLiteStore) StatusHistory(ref string) ([]order.StatusChange, error) {
	rows, err := s.db.Query(
		`SELECT from_status, to_status, changed_by, changed_at
		 FROM order_status_history
		 WHERE order_ref = ?
		 ORDER BY id ASC`,
		ref,
	)
	if err != nil {
		return nil, fmt.Errorf("query status history for order %s: %w", ref, err)
	}
	defer func() { _ = rows.Close() }()

	changes := []order.StatusChange{}
	for rows.Next() {
		c := order.StatusChange{OrderRef: ref}
		var from, to, changedAt string
		if err := rows.Scan(&from, &to, &c.ChangedBy, &changedAt); err != nil {
			return nil, fmt.Errorf("scan status change for order %s: %w", ref, err)
		}
		c.From = order.Status(from)
		c.To = order.Status(to)
		if c.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, fmt.Errorf("parse status change time for order %s: %w", ref, err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history for order %s: %w", ref, err)
	}
	return changes, nil
}
