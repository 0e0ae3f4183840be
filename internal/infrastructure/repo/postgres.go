package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"laundry-backend/internal/domain"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(ctx context.Context, dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	r := &PostgresRepo{db: db}
	if err := r.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS service_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		price_per_kg BIGINT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);`,
	`CREATE TABLE IF NOT EXISTS item_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price BIGINT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL DEFAULT '',
		service_type_id TEXT NOT NULL REFERENCES service_types(id),
		service_kind TEXT NOT NULL,
		weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
		service_price BIGINT NOT NULL,
		pickup_fee BIGINT NOT NULL DEFAULT 0,
		delivery_fee BIGINT NOT NULL DEFAULT 0,
		total_price BIGINT NOT NULL,
		pickup_date TIMESTAMPTZ NOT NULL,
		pickup_time TEXT NOT NULL DEFAULT '',
		delivery_date TIMESTAMPTZ,
		delivery_time TEXT NOT NULL DEFAULT '',
		pickup_address TEXT NOT NULL,
		delivery_address TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL,
		customer_phone TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		gateway_transaction_id TEXT NOT NULL DEFAULT '',
		gateway_payment_type TEXT NOT NULL DEFAULT '',
		va_number TEXT NOT NULL DEFAULT '',
		masked_card TEXT NOT NULL DEFAULT '',
		fraud_status TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS orders_gateway_transaction_id_idx ON orders (gateway_transaction_id) WHERE gateway_transaction_id <> '';`,
	`CREATE INDEX IF NOT EXISTS orders_payment_status_created_at_idx ON orders (payment_status, created_at);`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		item_type_id TEXT NOT NULL REFERENCES item_types(id),
		quantity INT NOT NULL,
		price_per_item BIGINT NOT NULL,
		subtotal BIGINT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS order_status_history (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		old_status TEXT NOT NULL DEFAULT '',
		new_status TEXT NOT NULL,
		old_payment_status TEXT NOT NULL DEFAULT '',
		new_payment_status TEXT NOT NULL,
		gateway_status TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		unchanged BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS payment_logs (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL DEFAULT '',
		gateway_order_id TEXT NOT NULL,
		transaction_status TEXT NOT NULL DEFAULT '',
		fraud_status TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		payload JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);`,
}

func (r *PostgresRepo) init(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return r.seedCatalog(ctx)
}

// seedCatalog inserts the default catalog without touching rows an operator edited.
func (r *PostgresRepo) seedCatalog(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, s := range DefaultServiceTypes() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO service_types (id,name,kind,price_per_kg,active)
			VALUES ($1,$2,$3,$4,$5) ON CONFLICT (id) DO NOTHING`,
			s.ID, s.Name, string(s.Kind), s.PricePerKg, s.Active); err != nil {
			return fmt.Errorf("failed to seed service types: %w", err)
		}
	}
	for _, it := range DefaultItemTypes() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO item_types (id,name,price,active)
			VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`,
			it.ID, it.Name, it.Price, it.Active); err != nil {
			return fmt.Errorf("failed to seed item types: %w", err)
		}
	}
	return tx.Commit()
}

const orderColumns = `o.id,o.order_number,o.user_id,o.service_type_id,COALESCE(s.name,''),o.service_kind,o.weight_kg,
	o.service_price,o.pickup_fee,o.delivery_fee,o.total_price,o.pickup_date,o.pickup_time,o.delivery_date,o.delivery_time,
	o.pickup_address,o.delivery_address,o.customer_name,o.customer_phone,o.notes,o.status,o.payment_status,
	o.gateway_transaction_id,o.gateway_payment_type,o.va_number,o.masked_card,o.fraud_status,o.created_at,o.updated_at`

const orderFrom = ` FROM orders o LEFT JOIN service_types s ON s.id = o.service_type_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(sc scanner) (*domain.Order, error) {
	var o domain.Order
	var delivery sql.NullTime
	err := sc.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.ServiceTypeID, &o.ServiceTypeName, (*string)(&o.ServiceKind), &o.WeightKg,
		&o.ServicePrice, &o.PickupFee, &o.DeliveryFee, &o.TotalPrice, &o.PickupDate, &o.PickupTime, &delivery, &o.DeliveryTime,
		&o.PickupAddress, &o.DeliveryAddress, &o.CustomerName, &o.CustomerPhone, &o.Notes, (*string)(&o.Status), (*string)(&o.PaymentStatus),
		&o.GatewayTransactionID, &o.GatewayPaymentType, &o.VANumber, &o.MaskedCard, &o.FraudStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if delivery.Valid {
		t := delivery.Time
		o.DeliveryDate = &t
	}
	return &o, nil
}

func (r *PostgresRepo) CreateOrder(ctx context.Context, o *domain.Order, first *domain.StatusHistory) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var delivery sql.NullTime
	if o.DeliveryDate != nil {
		delivery = sql.NullTime{Time: *o.DeliveryDate, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO orders (id,order_number,user_id,service_type_id,service_kind,weight_kg,
		service_price,pickup_fee,delivery_fee,total_price,pickup_date,pickup_time,delivery_date,delivery_time,
		pickup_address,delivery_address,customer_name,customer_phone,notes,status,payment_status,
		gateway_transaction_id,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		o.ID, o.OrderNumber, o.UserID, o.ServiceTypeID, string(o.ServiceKind), o.WeightKg,
		o.ServicePrice, o.PickupFee, o.DeliveryFee, o.TotalPrice, o.PickupDate, o.PickupTime, delivery, o.DeliveryTime,
		o.PickupAddress, o.DeliveryAddress, o.CustomerName, o.CustomerPhone, o.Notes, string(o.Status), string(o.PaymentStatus),
		o.GatewayTransactionID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if len(o.Items) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO order_items (id,order_id,item_type_id,quantity,price_per_item,subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()
		for _, it := range o.Items {
			if _, err := stmt.ExecContext(ctx, it.ID, o.ID, it.ItemTypeID, it.Quantity, it.PricePerItem, it.Subtotal); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
	}

	if first != nil {
		if err := insertHistory(ctx, tx, first); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostgresRepo) queryOne(ctx context.Context, where string, arg any) (*domain.Order, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+orderFrom+` WHERE `+where, arg)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	items, err := r.orderItems(ctx, o.ID)
	if err != nil {
		return nil, false, err
	}
	o.Items = items
	return o, true, nil
}

func (r *PostgresRepo) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT oi.id,oi.order_id,oi.item_type_id,COALESCE(it.name,''),oi.quantity,oi.price_per_item,oi.subtotal
		FROM order_items oi LEFT JOIN item_types it ON it.id = oi.item_type_id
		WHERE oi.order_id = $1 ORDER BY it.name, oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemTypeID, &it.ItemTypeName, &it.Quantity, &it.PricePerItem, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) queryMany(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetOrder(ctx context.Context, id string) (*domain.Order, bool, error) {
	return r.queryOne(ctx, `o.id = $1`, id)
}

func (r *PostgresRepo) FindByGatewayTransactionID(ctx context.Context, gatewayID string) (*domain.Order, bool, error) {
	if gatewayID == "" {
		return nil, false, nil
	}
	return r.queryOne(ctx, `o.gateway_transaction_id = $1`, gatewayID)
}

func (r *PostgresRepo) FindByOrderNumber(ctx context.Context, number string) (*domain.Order, bool, error) {
	return r.queryOne(ctx, `o.order_number = $1`, number)
}

func (r *PostgresRepo) ListOrders(ctx context.Context, page, pageSize int) ([]domain.Order, int, error) {
	out, err := r.queryMany(ctx, `SELECT `+orderColumns+orderFrom+` ORDER BY o.created_at DESC LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresRepo) FindRecentByOrderNumberPrefix(ctx context.Context, prefix string, since time.Time) ([]domain.Order, error) {
	return r.queryMany(ctx, `SELECT `+orderColumns+orderFrom+` WHERE o.order_number LIKE $1 ESCAPE '\' AND o.created_at >= $2 ORDER BY o.created_at DESC`,
		escapeLike(prefix)+"%", since)
}

func (r *PostgresRepo) ListPendingPayments(ctx context.Context, since time.Time) ([]domain.Order, error) {
	return r.queryMany(ctx, `SELECT `+orderColumns+orderFrom+` WHERE o.payment_status = $1 AND o.created_at >= $2 ORDER BY o.created_at ASC`,
		string(domain.PaymentPending), since)
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, u domain.StatusUpdate, expected domain.PaymentStatus) (*domain.Order, bool, error) {
	// line items are immutable once the order exists
	items, err := r.orderItems(ctx, u.OrderID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load order items: %w", err)
	}
	row := r.db.QueryRowContext(ctx, `WITH updated AS (UPDATE orders SET status = $2, payment_status = $3, updated_at = $4,
		gateway_transaction_id = COALESCE(NULLIF($5, ''), gateway_transaction_id),
		gateway_payment_type = COALESCE(NULLIF($6, ''), gateway_payment_type),
		va_number = COALESCE(NULLIF($7, ''), va_number),
		masked_card = COALESCE(NULLIF($8, ''), masked_card),
		fraud_status = COALESCE(NULLIF($9, ''), fraud_status)
		WHERE id = $1 AND payment_status = $10
		RETURNING *)
		SELECT `+orderColumns+` FROM updated o LEFT JOIN service_types s ON s.id = o.service_type_id`,
		u.OrderID, string(u.Status), string(u.PaymentStatus), u.UpdatedAt,
		u.Refs.TransactionID, u.Refs.PaymentType, u.Refs.VANumber, u.Refs.MaskedCard, u.Refs.FraudStatus,
		string(expected))
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to update order status: %w", err)
	}
	o.Items = items
	return o, true, nil
}

func (r *PostgresRepo) SetGatewayTransactionID(ctx context.Context, orderID, gatewayID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET gateway_transaction_id = $2, updated_at = $3 WHERE id = $1`, orderID, gatewayID, at)
	if err != nil {
		return fmt.Errorf("failed to set gateway transaction id: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoOrder
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertHistory(ctx context.Context, ex execer, h *domain.StatusHistory) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO order_status_history (id,order_id,old_status,new_status,old_payment_status,new_payment_status,
		gateway_status,source,note,unchanged,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		h.ID, h.OrderID, string(h.OldStatus), string(h.NewStatus), string(h.OldPaymentStatus), string(h.NewPaymentStatus),
		h.GatewayStatus, string(h.Source), h.Note, h.Unchanged, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert status history: %w", err)
	}
	return nil
}

func (r *PostgresRepo) AppendHistory(ctx context.Context, h *domain.StatusHistory) error {
	return insertHistory(ctx, r.db, h)
}

func (r *PostgresRepo) ListHistory(ctx context.Context, orderID string) ([]domain.StatusHistory, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,order_id,old_status,new_status,old_payment_status,new_payment_status,
		gateway_status,source,note,unchanged,created_at FROM order_status_history WHERE order_id = $1 ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.StatusHistory
	for rows.Next() {
		var h domain.StatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, (*string)(&h.OldStatus), (*string)(&h.NewStatus), (*string)(&h.OldPaymentStatus),
			(*string)(&h.NewPaymentStatus), &h.GatewayStatus, (*string)(&h.Source), &h.Note, &h.Unchanged, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) AppendPaymentLog(ctx context.Context, l *domain.PaymentLog) error {
	var payload any
	if len(l.Payload) > 0 {
		payload = []byte(l.Payload)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO payment_logs (id,order_id,gateway_order_id,transaction_status,fraud_status,source,payload,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		l.ID, l.OrderID, l.GatewayOrderID, l.TransactionStatus, l.FraudStatus, string(l.Source), payload, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment log: %w", err)
	}
	return nil
}

func (r *PostgresRepo) GetServiceType(ctx context.Context, id string) (*domain.ServiceType, bool, error) {
	var s domain.ServiceType
	err := r.db.QueryRowContext(ctx, `SELECT id,name,kind,price_per_kg,active FROM service_types WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, (*string)(&s.Kind), &s.PricePerKg, &s.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

func (r *PostgresRepo) ListServiceTypes(ctx context.Context) ([]domain.ServiceType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,name,kind,price_per_kg,active FROM service_types ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ServiceType
	for rows.Next() {
		var s domain.ServiceType
		if err := rows.Scan(&s.ID, &s.Name, (*string)(&s.Kind), &s.PricePerKg, &s.Active); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetItemTypes(ctx context.Context, ids []string) (map[string]domain.ItemType, error) {
	out := make(map[string]domain.ItemType, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id,name,price,active FROM item_types WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.ItemType
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Active); err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListItemTypes(ctx context.Context) ([]domain.ItemType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,name,price,active FROM item_types ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ItemType
	for rows.Next() {
		var it domain.ItemType
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Active); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
