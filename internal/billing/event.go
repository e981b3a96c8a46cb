package billing

import (
	"encoding/json"
	"fmt"
)

// EventKind identifies a billing provider webhook event over the closed set
// this service consumes.
type EventKind string

const (
	EventSubscriptionCreated EventKind = "customer.subscription.created"
	EventSubscriptionUpdated EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted EventKind = "customer.subscription.deleted"
	EventInvoicePaid         EventKind = "invoice.payment_succeeded"
	EventInvoiceFailed       EventKind = "invoice.payment_failed"
	EventTrialWillEnd        EventKind = "customer.subscription.trial_will_end"
	EventUnknown             EventKind = "unknown"
)

// SubscriptionPayload is the typed payload of subscription lifecycle events.
type SubscriptionPayload struct {
	ID               string
	Status           string
	RestaurantID     string // raw metadata value, may be empty
	CurrentPeriodEnd int64  // unix seconds, 0 when missing
	LatestInvoiceID  string
}

// InvoicePayload is the typed payload of invoice payment events.
type InvoicePayload struct {
	ID             string
	SubscriptionID string
	AmountPaid     int64
	PaidAt         int64
	Created        int64
}

// Event is a verified webhook event decoded into exactly one payload variant.
// Subscription is set for subscription.* kinds, Invoice for invoice.* kinds;
// unknown kinds carry neither and keep the provider's type string in Type.
type Event struct {
	Kind         EventKind
	Type         string
	Subscription *SubscriptionPayload
	Invoice      *InvoicePayload
}

type rawSubscription struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
	Items    struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
	LatestInvoice json.RawMessage `json:"latest_invoice"`
}

type rawInvoice struct {
	ID           string          `json:"id"`
	Subscription json.RawMessage `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription json.RawMessage `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	AmountPaid        int64 `json:"amount_paid"`
	Created           int64 `json:"created"`
	StatusTransitions *struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}

// DecodeEvent decodes a verified event's raw object payload into the typed
// union. The payload is interpreted exactly once, here; everything downstream
// works on the typed variants. Unknown event types decode to EventUnknown
// without error so the receiver can acknowledge them.
func DecodeEvent(eventType string, payload []byte) (*Event, error) {
	kind := EventKind(eventType)

	switch kind {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted, EventTrialWillEnd:
		var raw rawSubscription
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("decoding subscription event %s: %w", eventType, err)
		}
		sub := &SubscriptionPayload{
			ID:              raw.ID,
			Status:          raw.Status,
			RestaurantID:    raw.Metadata[MetadataRestaurantID],
			LatestInvoiceID: refID(raw.LatestInvoice),
		}
		if len(raw.Items.Data) > 0 {
			sub.CurrentPeriodEnd = raw.Items.Data[0].CurrentPeriodEnd
		}
		return &Event{Kind: kind, Type: eventType, Subscription: sub}, nil

	case EventInvoicePaid, EventInvoiceFailed:
		var raw rawInvoice
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("decoding invoice event %s: %w", eventType, err)
		}
		inv := &InvoicePayload{
			ID:             raw.ID,
			SubscriptionID: refID(raw.Subscription),
			AmountPaid:     raw.AmountPaid,
			Created:        raw.Created,
		}
		// Newer provider API versions move the subscription reference
		// under the invoice's parent details.
		if inv.SubscriptionID == "" && raw.Parent != nil && raw.Parent.SubscriptionDetails != nil {
			inv.SubscriptionID = refID(raw.Parent.SubscriptionDetails.Subscription)
		}
		if raw.StatusTransitions != nil {
			inv.PaidAt = raw.StatusTransitions.PaidAt
		}
		return &Event{Kind: kind, Type: eventType, Invoice: inv}, nil

	default:
		return &Event{Kind: EventUnknown, Type: eventType}, nil
	}
}

// refID extracts an object reference that may be delivered either as a bare
// id string or as an expanded object with an "id" field.
func refID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
