package postgres

import (
	"context"
	"database/sql"

	"bullion/internal/compliance"
)

const clientColumns = `id, seq, fiscal_id, first_name, last_name, document_type, document_number,
	document_expiry, address, city, aml_status, last_aml_check, annual_cash_ceiling, cash_used,
	cash_year, active, created_at, updated_at`

type clients struct {
	q querier
}

func (r *clients) Create(ctx context.Context, c compliance.Client) (compliance.Client, error) {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO clients (id, fiscal_id, first_name, last_name, document_type, document_number,
			document_expiry, address, city, aml_status, last_aml_check, annual_cash_ceiling, cash_used,
			cash_year, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING seq`,
		c.ID, c.FiscalID, c.FirstName, c.LastName, c.DocumentType, c.DocumentNumber,
		nullTime(c.DocumentExpiry), c.Address, c.City, string(c.AMLStatus), nullTimePtr(c.LastAMLCheck),
		c.AnnualCashCeiling, c.CashUsed, c.CashYear, c.Active, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.Seq)
	if err != nil {
		return compliance.Client{}, translate(err, "insert client")
	}
	return c, nil
}

func (r *clients) Update(ctx context.Context, c compliance.Client) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE clients
		SET first_name = $2, last_name = $3, document_type = $4, document_number = $5,
			document_expiry = $6, address = $7, city = $8, aml_status = $9, last_aml_check = $10,
			annual_cash_ceiling = $11, cash_used = $12, cash_year = $13, active = $14, updated_at = $15
		WHERE id = $1`,
		c.ID, c.FirstName, c.LastName, c.DocumentType, c.DocumentNumber, nullTime(c.DocumentExpiry),
		c.Address, c.City, string(c.AMLStatus), nullTimePtr(c.LastAMLCheck), c.AnnualCashCeiling,
		c.CashUsed, c.CashYear, c.Active, c.UpdatedAt,
	)
	if err != nil {
		return translate(err, "update client")
	}
	return expectOne(res, "update client")
}

func (r *clients) Find(ctx context.Context, id string) (compliance.Client, error) {
	c, err := scanClient(r.q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	return c, translate(err, "find client")
}

func (r *clients) FindForUpdate(ctx context.Context, id string) (compliance.Client, error) {
	c, err := scanClient(r.q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, id))
	return c, translate(err, "lock client")
}

func (r *clients) FindByFiscalID(ctx context.Context, fiscalID string) (compliance.Client, error) {
	c, err := scanClient(r.q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE fiscal_id = $1`, fiscalID))
	return c, translate(err, "find client by fiscal id")
}

func scanClient(row scanner) (compliance.Client, error) {
	var (
		c         compliance.Client
		expiry    sql.NullTime
		lastCheck sql.NullTime
		status    string
	)
	err := row.Scan(&c.ID, &c.Seq, &c.FiscalID, &c.FirstName, &c.LastName, &c.DocumentType,
		&c.DocumentNumber, &expiry, &c.Address, &c.City, &status, &lastCheck,
		&c.AnnualCashCeiling, &c.CashUsed, &c.CashYear, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return compliance.Client{}, err
	}
	if expiry.Valid {
		c.DocumentExpiry = expiry.Time
	}
	c.LastAMLCheck = timePtr(lastCheck)
	c.AMLStatus = compliance.AMLStatus(status)
	return c, nil
}
