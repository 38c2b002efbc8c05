package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	legal := []struct {
		from, to TransactionStatus
	}{
		{TransactionStatusProcessing, TransactionStatusPending},
		{TransactionStatusProcessing, TransactionStatusFailed},
		{TransactionStatusPending, TransactionStatusCompleted},
		{TransactionStatusPending, TransactionStatusFailed},
		{TransactionStatusPending, TransactionStatusPending},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
		assert.NoError(t, CheckTransition(tc.from, tc.to))
	}

	illegal := []struct {
		from, to TransactionStatus
	}{
		{TransactionStatusCompleted, TransactionStatusPending},
		{TransactionStatusCompleted, TransactionStatusFailed},
		{TransactionStatusFailed, TransactionStatusPending},
		{TransactionStatusFailed, TransactionStatusCompleted},
		{TransactionStatusPending, TransactionStatusProcessing},
		{TransactionStatusProcessing, TransactionStatusCompleted},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
		err := CheckTransition(tc.from, tc.to)
		assert.ErrorIs(t, err, ErrIllegalTransition)
	}
}

func TestTransactionStatus_Terminal(t *testing.T) {
	assert.True(t, TransactionStatusCompleted.Terminal())
	assert.True(t, TransactionStatusFailed.Terminal())
	assert.False(t, TransactionStatusProcessing.Terminal())
	assert.False(t, TransactionStatusPending.Terminal())
}

func TestParseWebhookEvent(t *testing.T) {
	t.Run("batch event", func(t *testing.T) {
		body := []byte(`{
			"id": "WH-1",
			"event_type": "PAYMENT.PAYOUTSBATCH.SUCCESS",
			"resource": {"batch_header": {"payout_batch_id": "PAYPAL-1", "batch_status": "SUCCESS"}}
		}`)

		ev, err := ParseWebhookEvent(body)
		require.NoError(t, err)
		assert.Equal(t, "WH-1", ev.ID)
		assert.Equal(t, EventBatchSuccess, ev.EventType)
		require.NotNil(t, ev.Batch)
		assert.Equal(t, "PAYPAL-1", ev.Batch.PayoutBatchID)
		assert.Nil(t, ev.Item)
	})

	t.Run("item event with error message", func(t *testing.T) {
		body := []byte(`{
			"id": "WH-2",
			"event_type": "PAYMENT.PAYOUTS-ITEM.FAILED",
			"resource": {
				"payout_item_id": "ITEM-1",
				"payout_batch_id": "PAYPAL-1",
				"sender_item_id": "42",
				"errors": {"message": "Receiver is unregistered"}
			}
		}`)

		ev, err := ParseWebhookEvent(body)
		require.NoError(t, err)
		assert.Equal(t, EventItemFailed, ev.EventType)
		require.NotNil(t, ev.Item)
		assert.Equal(t, "42", ev.Item.SenderItemID)
		assert.Equal(t, "ITEM-1", ev.Item.PayoutItemID)
		assert.Equal(t, "Receiver is unregistered", ev.Item.ErrorMessage)
		assert.Nil(t, ev.Batch)
	})

	t.Run("unknown event type parses as no-op union", func(t *testing.T) {
		body := []byte(`{"id": "WH-3", "event_type": "PAYMENT.SALE.COMPLETED", "resource": {}}`)

		ev, err := ParseWebhookEvent(body)
		require.NoError(t, err)
		assert.Nil(t, ev.Batch)
		assert.Nil(t, ev.Item)
	})

	t.Run("malformed payloads", func(t *testing.T) {
		cases := map[string][]byte{
			"not json":             []byte(`{`),
			"missing event_type":   []byte(`{"id": "WH-4", "resource": {}}`),
			"batch without header": []byte(`{"event_type": "PAYMENT.PAYOUTSBATCH.SUCCESS", "resource": {}}`),
			"item without sender":  []byte(`{"event_type": "PAYMENT.PAYOUTS-ITEM.SUCCEEDED", "resource": {"payout_item_id": "ITEM-1"}}`),
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := ParseWebhookEvent(body)
				assert.ErrorIs(t, err, ErrMalformedEvent)
			})
		}
	})
}
