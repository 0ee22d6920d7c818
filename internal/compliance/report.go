package compliance

import (
	"encoding/xml"
	"fmt"
	"time"
)

// GoldReport is the regulator exchange document for a reportable gold trade.
// Element names follow the regulator schema.
type GoldReport struct {
	XMLName         xml.Name     `xml:"ComunicazioneOro" json:"-"`
	OperationNumber string       `xml:"NumeroOperazione" json:"operation_number"`
	OperationDate   string       `xml:"DataOperazione" json:"operation_date"`
	OperationType   string       `xml:"TipoOperazione" json:"operation_type"`
	Metal           string       `xml:"Metallo" json:"metal"`
	Quantity        string       `xml:"Quantita" json:"quantity_grams"`
	Value           string       `xml:"Valore" json:"value"`
	Client          *ReportParty `xml:"Cliente,omitempty" json:"client,omitempty"`
}

// ReportParty identifies the counterparty in a GoldReport.
type ReportParty struct {
	FiscalID string `xml:"CodiceFiscale" json:"fiscal_id"`
	Name     string `xml:"Nome" json:"name"`
}

func newGoldReport(tx Transaction) *GoldReport {
	r := &GoldReport{
		OperationNumber: tx.Number,
		OperationDate:   tx.Date.Format(time.DateOnly),
		OperationType:   tx.Kind,
		Metal:           tx.Metal.String(),
		Quantity:        tx.NetGrams.StringFixed(3),
		Value:           tx.Value.StringFixed(2),
	}
	if tx.Counterparty != nil {
		r.Client = &ReportParty{FiscalID: tx.Counterparty.FiscalID, Name: tx.Counterparty.Name}
	}
	return r
}

// MarshalReport renders r in the regulator XML format with its declaration.
func MarshalReport(r *GoldReport) ([]byte, error) {
	body, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal regulator report: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	return append(out, '\n'), nil
}
