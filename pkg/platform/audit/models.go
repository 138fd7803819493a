package audit

import (
	"context"
	"time"

	"crossledger/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so the
// notary can apply different retention and routing per category.
type EventCategory string

const (
	// CategoryCompliance covers value movements and record creation with
	// regulatory significance (payments, payouts, credit issuance).
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers identity and authority changes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle steps.
	CategoryOperations EventCategory = "operations"
)

// Action names a domain event.
type Action string

const (
	// Registry
	EventEntityRegistered     Action = "entity.registered"
	EventEntityVerified       Action = "entity.verified"
	EventReputationUpdated    Action = "entity.reputation_updated"
	EventModulesActivated     Action = "entity.modules_activated"
	EventTransactionCompleted Action = "entity.transaction_recorded"

	// Coordinator
	EventCrossTxCreated  Action = "crosstx.created"
	EventCrossTxAdvanced Action = "crosstx.advanced"
	EventCrossTxComplete Action = "crosstx.completed"

	// Agriculture
	EventHarvestRecorded     Action = "harvest.recorded"
	EventHarvestVerified     Action = "harvest.verified"
	EventContractCreated     Action = "contract.created"
	EventEscrowDeposited     Action = "contract.escrow_deposited"
	EventDeliveryConfirmed   Action = "contract.delivery_confirmed"
	EventPaymentReleased     Action = "contract.payment_released"
	EventCropPolicyCreated   Action = "crop_policy.created"
	EventCropPayoutProcessed Action = "crop_policy.payout_processed"

	// Healthcare
	EventHealthPolicyCreated     Action = "health_policy.created"
	EventHealthPolicyDeactivated Action = "health_policy.deactivated"
	EventPremiumDeducted         Action = "health_policy.premium_deducted"
	EventVisitRecorded           Action = "visit.recorded"

	// Sustainability
	EventCreditsAwarded Action = "credit.awarded"
	EventCreditsRetired Action = "credit.retired"
)

var eventCategories = map[Action]EventCategory{
	EventEntityVerified:       CategorySecurity,
	EventReputationUpdated:    CategorySecurity,
	EventModulesActivated:     CategorySecurity,
	EventEntityRegistered:     CategoryCompliance,
	EventPaymentReleased:      CategoryCompliance,
	EventEscrowDeposited:      CategoryCompliance,
	EventCropPayoutProcessed:  CategoryCompliance,
	EventPremiumDeducted:      CategoryCompliance,
	EventVisitRecorded:        CategoryCompliance,
	EventCreditsAwarded:       CategoryCompliance,
	EventCreditsRetired:       CategoryCompliance,
	EventCrossTxComplete:      CategoryCompliance,
	EventTransactionCompleted: CategoryOperations,
}

// Category returns the EventCategory for this action.
// Unlisted actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := eventCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is the auditable copy of a state change. It is built inside the
// owning component's transaction and published by the dispatcher afterwards.
type Event struct {
	ID        domain.RecordID   `json:"id"`
	Module    domain.Module     `json:"module"`
	Action    Action            `json:"action"`
	Category  EventCategory     `json:"category"`
	Actor     domain.Wallet     `json:"actor"`
	Subject   string            `json:"subject"`
	Amount    uint64            `json:"amount,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Store is the durable-log / notary boundary. Append publishes event under
// topic and returns its sequence number; sequences are ordered per topic.
type Store interface {
	Append(ctx context.Context, topic string, event Event) (uint64, error)
}
