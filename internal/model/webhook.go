package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// WebhookEventType enumerates the PayPal payout events the reconciliation
// listener understands. Unknown types are accepted at parse time and ignored
// by the listener (forward-compatible no-op).
type WebhookEventType string

const (
	EventBatchSuccess  WebhookEventType = "PAYMENT.PAYOUTSBATCH.SUCCESS"
	EventBatchDenied   WebhookEventType = "PAYMENT.PAYOUTSBATCH.DENIED"
	EventItemSucceeded WebhookEventType = "PAYMENT.PAYOUTS-ITEM.SUCCEEDED"
	EventItemFailed    WebhookEventType = "PAYMENT.PAYOUTS-ITEM.FAILED"
	EventItemBlocked   WebhookEventType = "PAYMENT.PAYOUTS-ITEM.BLOCKED"
	EventItemReturned  WebhookEventType = "PAYMENT.PAYOUTS-ITEM.RETURNED"
	EventItemUnclaimed WebhookEventType = "PAYMENT.PAYOUTS-ITEM.UNCLAIMED"
	EventItemRefunded  WebhookEventType = "PAYMENT.PAYOUTS-ITEM.REFUNDED"
)

// BatchEvent carries the resource fields of a batch-level event.
type BatchEvent struct {
	PayoutBatchID string
	BatchStatus   string
}

// ItemEvent carries the resource fields of an item-level event.
// SenderItemID is our transaction id echoed back by PayPal.
type ItemEvent struct {
	SenderItemID  string
	PayoutItemID  string
	PayoutBatchID string
	ErrorMessage  string
}

// WebhookEvent is the tagged union over PayPal payout notifications.
// Exactly one of Batch/Item is non-nil for known event types; both are nil
// for unknown types, which callers treat as a no-op.
type WebhookEvent struct {
	ID        string
	EventType WebhookEventType
	Batch     *BatchEvent
	Item      *ItemEvent
}

var ErrMalformedEvent = errors.New("malformed webhook event")

type webhookEnvelope struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		BatchHeader *struct {
			PayoutBatchID string `json:"payout_batch_id"`
			BatchStatus   string `json:"batch_status"`
		} `json:"batch_header"`
		PayoutItemID  string `json:"payout_item_id"`
		PayoutBatchID string `json:"payout_batch_id"`
		SenderItemID  string `json:"sender_item_id"`
		Errors        *struct {
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"resource"`
}

// ParseWebhookEvent validates the raw payload into the typed union. Field
// presence is checked here so the listener never reaches into a loosely
// typed map.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	}

	ev := &WebhookEvent{
		ID:        env.ID,
		EventType: WebhookEventType(env.EventType),
	}

	switch ev.EventType {
	case EventBatchSuccess, EventBatchDenied:
		if env.Resource.BatchHeader == nil || env.Resource.BatchHeader.PayoutBatchID == "" {
			return nil, fmt.Errorf("%w: %s without batch_header.payout_batch_id", ErrMalformedEvent, ev.EventType)
		}
		ev.Batch = &BatchEvent{
			PayoutBatchID: env.Resource.BatchHeader.PayoutBatchID,
			BatchStatus:   env.Resource.BatchHeader.BatchStatus,
		}
	case EventItemSucceeded, EventItemFailed, EventItemBlocked,
		EventItemReturned, EventItemUnclaimed, EventItemRefunded:
		if env.Resource.SenderItemID == "" {
			return nil, fmt.Errorf("%w: %s without sender_item_id", ErrMalformedEvent, ev.EventType)
		}
		item := &ItemEvent{
			SenderItemID:  env.Resource.SenderItemID,
			PayoutItemID:  env.Resource.PayoutItemID,
			PayoutBatchID: env.Resource.PayoutBatchID,
		}
		if env.Resource.Errors != nil {
			item.ErrorMessage = env.Resource.Errors.Message
		}
		ev.Item = item
	}

	return ev, nil
}
