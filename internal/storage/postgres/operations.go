package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bullion/internal/metal"
	"bullion/internal/operations"
)

const operationColumns = `number, client_id, supplier_id, kind, metal, purity, gross_grams, net_grams,
	market_price, applied_price, total_value, cash_amount, transfer_amount, payment_completed,
	holding_until, aml_checked, report_sent, status, operation_date, shipping_doc_ref, invoice_ref,
	notes, recorded_by, created_at, updated_at`

type ops struct {
	q querier
}

func (r *ops) Create(ctx context.Context, op operations.Operation) error {
	year, seq, err := operations.ParseSequence(op.Number)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO operations (year, seq, `+operationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)`,
		year, seq, op.Number, op.ClientID, op.SupplierID, string(op.Kind), string(op.Metal),
		int(op.Purity), op.GrossGrams, op.NetGrams, op.MarketPrice, op.AppliedPrice, op.TotalValue,
		op.CashAmount, op.TransferAmount, op.PaymentCompleted, nullTimePtr(op.HoldingUntil),
		op.AMLChecked, op.ReportSent, string(op.Status), op.OperationDate, op.ShippingDocRef,
		op.InvoiceRef, op.Notes, op.RecordedBy, op.CreatedAt, op.UpdatedAt,
	)
	return translate(err, "insert operation")
}

func (r *ops) Update(ctx context.Context, op operations.Operation) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE operations
		SET gross_grams = $2, net_grams = $3, market_price = $4, applied_price = $5, total_value = $6,
			cash_amount = $7, transfer_amount = $8, payment_completed = $9, holding_until = $10,
			aml_checked = $11, report_sent = $12, status = $13, shipping_doc_ref = $14,
			invoice_ref = $15, notes = $16, updated_at = $17
		WHERE number = $1`,
		op.Number, op.GrossGrams, op.NetGrams, op.MarketPrice, op.AppliedPrice, op.TotalValue,
		op.CashAmount, op.TransferAmount, op.PaymentCompleted, nullTimePtr(op.HoldingUntil),
		op.AMLChecked, op.ReportSent, string(op.Status), op.ShippingDocRef, op.InvoiceRef,
		op.Notes, op.UpdatedAt,
	)
	if err != nil {
		return translate(err, "update operation")
	}
	return expectOne(res, "update operation")
}

func (r *ops) Find(ctx context.Context, number string) (operations.Operation, error) {
	op, err := scanOperation(r.q.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM operations WHERE number = $1`, number))
	return op, translate(err, "find operation")
}

func (r *ops) FindForUpdate(ctx context.Context, number string) (operations.Operation, error) {
	op, err := scanOperation(r.q.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM operations WHERE number = $1 FOR UPDATE`, number))
	return op, translate(err, "lock operation")
}

func (r *ops) MaxSequence(ctx context.Context, year int) (int, error) {
	if err := lockSequence(ctx, r.q, "operations", year); err != nil {
		return 0, err
	}
	var seq int
	err := r.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM operations WHERE year = $1`, year).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max operation sequence: %w", err)
	}
	return seq, nil
}

func (r *ops) ListBetween(ctx context.Context, from, to time.Time) ([]operations.Operation, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+operationColumns+` FROM operations
		WHERE operation_date >= $1 AND operation_date < $2 ORDER BY number`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var out []operations.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func scanOperation(row scanner) (operations.Operation, error) {
	var (
		op      operations.Operation
		kind    string
		m       string
		purity  int
		holding sql.NullTime
		status  string
	)
	err := row.Scan(&op.Number, &op.ClientID, &op.SupplierID, &kind, &m, &purity, &op.GrossGrams,
		&op.NetGrams, &op.MarketPrice, &op.AppliedPrice, &op.TotalValue, &op.CashAmount,
		&op.TransferAmount, &op.PaymentCompleted, &holding, &op.AMLChecked, &op.ReportSent,
		&status, &op.OperationDate, &op.ShippingDocRef, &op.InvoiceRef, &op.Notes,
		&op.RecordedBy, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return operations.Operation{}, err
	}
	op.Kind = operations.Kind(kind)
	op.Metal = metal.Metal(m)
	op.Purity = metal.Purity(purity)
	op.HoldingUntil = timePtr(holding)
	op.Status = operations.Status(status)
	return op, nil
}
