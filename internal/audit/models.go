package audit

import "time"

// Action names a recorded desk action.
type Action string

const (
	ActionContractCreated      Action = "contract_created"
	ActionDeliveryRecorded     Action = "delivery_recorded"
	ActionContractRenewed      Action = "contract_renewed"
	ActionStatusChanged        Action = "status_changed"
	ActionClientRegistered     Action = "client_registered"
	ActionAMLCheckCompleted    Action = "aml_check_completed"
	ActionCashDenied           Action = "cash_authorization_denied"
	ActionCashUsageRecorded    Action = "cash_usage_recorded"
	ActionOperationCreated     Action = "operation_created"
	ActionOperationConfirmed   Action = "operation_confirmed"
	ActionOperationCancelled   Action = "operation_cancelled"
	ActionRegulatoryReportSent Action = "regulatory_report_submitted"
	ActionProfileGenerated     Action = "aml_profile_generated"
)

// Event is one entry of the desk audit trail. It is written in the same
// transaction as the change it describes and later relayed to the outbox
// sink.
type Event struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Actor       string            `json:"actor"`
	RequestID   string            `json:"request_id,omitempty"`
	Subject     string            `json:"subject"`
	Action      Action            `json:"action"`
	Detail      string            `json:"detail,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
}
