package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"bullion/internal/fixing"
	"bullion/internal/metal"
	"bullion/internal/storage"
)

const contractColumns = `number, client_id, counterparty_id, metal, purity, total_grams, delivered_grams,
	fixed_price, contract_date, valid_from, expires_at, min_delivery, payment_method, status,
	notes, renewed_from, created_by, created_at, updated_at`

type contracts struct {
	q querier
}

func (r *contracts) Create(ctx context.Context, c fixing.Contract) error {
	year, seq, err := fixing.ParseSequence(c.Number)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO contracts (year, seq, `+contractColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		year, seq, c.Number, c.ClientID, c.CounterpartyID, string(c.Metal), int(c.Purity),
		c.TotalGrams, c.DeliveredGrams, c.FixedPrice, c.ContractDate, c.ValidFrom, c.ExpiresAt,
		c.MinDelivery, string(c.PaymentMethod), string(c.Status), c.Notes, c.RenewedFrom,
		c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	return translate(err, "insert contract")
}

func (r *contracts) Update(ctx context.Context, c fixing.Contract) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE contracts
		SET delivered_grams = $2, status = $3, notes = $4, expires_at = $5, updated_at = $6
		WHERE number = $1`,
		c.Number, c.DeliveredGrams, string(c.Status), c.Notes, c.ExpiresAt, c.UpdatedAt,
	)
	if err != nil {
		return translate(err, "update contract")
	}
	return expectOne(res, "update contract")
}

func (r *contracts) Find(ctx context.Context, number string) (fixing.Contract, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE number = $1`, number)
	c, err := scanContract(row)
	return c, translate(err, "find contract")
}

func (r *contracts) FindForUpdate(ctx context.Context, number string) (fixing.Contract, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE number = $1 FOR UPDATE`, number)
	c, err := scanContract(row)
	return c, translate(err, "lock contract")
}

func (r *contracts) List(ctx context.Context, f storage.ContractFilter) ([]fixing.Contract, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status = ANY("+arg(pq.Array(statuses))+")")
	}
	if f.ClientID != "" {
		where = append(where, "client_id = "+arg(f.ClientID))
	}
	addRange := func(col string, from, to time.Time) {
		if !from.IsZero() {
			where = append(where, col+" >= "+arg(from))
		}
		if !to.IsZero() {
			where = append(where, col+" < "+arg(to))
		}
	}
	addRange("expires_at", f.ExpiresFrom, f.ExpiresTo)
	addRange("created_at", f.CreatedFrom, f.CreatedTo)

	query := `SELECT ` + contractColumns + ` FROM contracts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY number"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []fixing.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *contracts) MaxSequence(ctx context.Context, year int) (int, error) {
	if err := lockSequence(ctx, r.q, "contracts", year); err != nil {
		return 0, err
	}
	var seq int
	err := r.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM contracts WHERE year = $1`, year).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max contract sequence: %w", err)
	}
	return seq, nil
}

func scanContract(row scanner) (fixing.Contract, error) {
	var (
		c       fixing.Contract
		m       string
		purity  int
		payment string
		status  string
	)
	err := row.Scan(&c.Number, &c.ClientID, &c.CounterpartyID, &m, &purity, &c.TotalGrams,
		&c.DeliveredGrams, &c.FixedPrice, &c.ContractDate, &c.ValidFrom, &c.ExpiresAt,
		&c.MinDelivery, &payment, &status, &c.Notes, &c.RenewedFrom, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fixing.Contract{}, err
	}
	c.Metal = metal.Metal(m)
	c.Purity = metal.Purity(purity)
	c.PaymentMethod = fixing.PaymentMethod(payment)
	c.Status = fixing.Status(status)
	return c, nil
}

type deliveries struct {
	q querier
}

const deliveryColumns = `id, contract_number, operation_ref, delivered_at, grams, price_applied, value,
	shipping_doc_ref, invoice_ref, recorded_by, notes`

func (r *deliveries) Create(ctx context.Context, d fixing.Delivery) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO deliveries (`+deliveryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.ContractNumber, d.OperationRef, d.DeliveredAt, d.Grams, d.PriceApplied, d.Value,
		d.ShippingDocRef, d.InvoiceRef, d.RecordedBy, d.Notes,
	)
	return translate(err, "insert delivery")
}

func (r *deliveries) ListByContract(ctx context.Context, number string) ([]fixing.Delivery, error) {
	return r.list(ctx, `SELECT `+deliveryColumns+` FROM deliveries
		WHERE contract_number = $1 ORDER BY delivered_at, id`, number)
}

func (r *deliveries) ListBetween(ctx context.Context, from, to time.Time) ([]fixing.Delivery, error) {
	return r.list(ctx, `SELECT `+deliveryColumns+` FROM deliveries
		WHERE delivered_at >= $1 AND delivered_at < $2 ORDER BY delivered_at, id`, from, to)
}

func (r *deliveries) list(ctx context.Context, query string, args ...any) ([]fixing.Delivery, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []fixing.Delivery
	for rows.Next() {
		var d fixing.Delivery
		if err := rows.Scan(&d.ID, &d.ContractNumber, &d.OperationRef, &d.DeliveredAt, &d.Grams,
			&d.PriceApplied, &d.Value, &d.ShippingDocRef, &d.InvoiceRef, &d.RecordedBy, &d.Notes); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
