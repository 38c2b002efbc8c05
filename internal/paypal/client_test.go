package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/graphcs/flexpay/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds() Credentials {
	return Credentials{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		Mode:         model.PayPalModeSandbox,
	}
}

func newTestClient(serverURL string) *Client {
	return NewClient(&Config{
		SandboxBaseURL: serverURL,
		LiveBaseURL:    serverURL,
		Timeout:        2 * time.Second,
	})
}

func tokenHandler(t *testing.T, mux *http.ServeMux) {
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "test-client", user)
		assert.Equal(t, "test-secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   32400,
		})
	})
}

func TestGetAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(t, mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)

	token, err := client.GetAccessToken(context.Background(), testCreds())
	require.NoError(t, err)
	assert.Equal(t, "test-token", token)
}

func TestGetAccessToken_BadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.GetAccessToken(context.Background(), testCreds())
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "invalid_client")
}

func TestGetAccessToken_MissingCredentials(t *testing.T) {
	client := newTestClient("http://localhost:1")

	_, err := client.GetAccessToken(context.Background(), Credentials{Mode: model.PayPalModeSandbox})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = client.GetAccessToken(context.Background(), Credentials{
		ClientID:     "a",
		ClientSecret: "b",
		Mode:         "production",
	})
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestCreatePayout(t *testing.T) {
	var received PayoutRequest

	mux := http.NewServeMux()
	tokenHandler(t, mux)
	mux.HandleFunc("/v1/payments/payouts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(PayoutBatchResponse{
			BatchHeader: BatchHeader{
				PayoutBatchID:     "PAYPAL-BATCH-1",
				BatchStatus:       "PENDING",
				SenderBatchHeader: received.SenderBatchHeader,
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)

	batch, err := client.CreatePayout(context.Background(), testCreds(), &PayoutRequest{
		SenderBatchHeader: SenderBatchHeader{
			SenderBatchID: "local-batch-1",
			EmailSubject:  "You have a payout",
		},
		Items: []PayoutItem{
			{
				RecipientType: "EMAIL",
				Amount:        Amount{Value: "25.50", Currency: "USD"},
				Receiver:      "alice@example.com",
				SenderItemID:  "42",
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "PAYPAL-BATCH-1", batch.BatchHeader.PayoutBatchID)
	assert.Equal(t, "PENDING", batch.BatchHeader.BatchStatus)

	require.Len(t, received.Items, 1)
	assert.Equal(t, "EMAIL", received.Items[0].RecipientType)
	assert.Equal(t, "25.50", received.Items[0].Amount.Value)
	assert.Equal(t, "42", received.Items[0].SenderItemID)
	assert.Equal(t, "local-batch-1", received.SenderBatchHeader.SenderBatchID)
}

func TestCreatePayout_APIError(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(t, mux)
	mux.HandleFunc("/v1/payments/payouts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(APIError{
			Name:    "INSUFFICIENT_FUNDS",
			Message: "Sender does not have sufficient funds",
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.CreatePayout(context.Background(), testCreds(), &PayoutRequest{
		SenderBatchHeader: SenderBatchHeader{SenderBatchID: "local-batch-1"},
	})
	require.Error(t, err)

	var payoutErr *PayoutError
	require.ErrorAs(t, err, &payoutErr)
	assert.Equal(t, "INSUFFICIENT_FUNDS", payoutErr.Name)
	assert.Equal(t, http.StatusUnprocessableEntity, payoutErr.StatusCode)
}

func TestGetPayoutStatus(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(t, mux)
	mux.HandleFunc("/v1/payments/payouts/PAYPAL-BATCH-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(PayoutBatchResponse{
			BatchHeader: BatchHeader{PayoutBatchID: "PAYPAL-BATCH-1", BatchStatus: "SUCCESS"},
			Items: []PayoutItemDetail{
				{
					PayoutItemID:      "ITEM-1",
					TransactionStatus: "SUCCESS",
					PayoutItem:        PayoutItem{SenderItemID: "42"},
				},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)

	batch, err := client.GetPayoutStatus(context.Background(), testCreds(), "PAYPAL-BATCH-1")
	require.NoError(t, err)

	assert.Equal(t, "SUCCESS", batch.BatchHeader.BatchStatus)
	require.Len(t, batch.Items, 1)
	assert.Equal(t, "42", batch.Items[0].PayoutItem.SenderItemID)
}

func TestVerifyWebhookSignature(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(t, mux)
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		var req verifyWebhookRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "WH-1", req.WebhookID)
		assert.Equal(t, "tx-1", req.TransmissionID)

		status := "SUCCESS"
		if req.TransmissionSig == "bad" {
			status = "FAILURE"
		}
		json.NewEncoder(w).Encode(map[string]string{"verification_status": status})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)
	event := []byte(`{"id":"WH-EVENT-1","event_type":"PAYMENT.PAYOUTSBATCH.SUCCESS"}`)

	ok, err := client.VerifyWebhookSignature(context.Background(), testCreds(), "WH-1",
		WebhookSignature{TransmissionID: "tx-1", TransmissionSig: "good"}, event)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.VerifyWebhookSignature(context.Background(), testCreds(), "WH-1",
		WebhookSignature{TransmissionID: "tx-1", TransmissionSig: "bad"}, event)
	require.NoError(t, err)
	assert.False(t, ok)
}
