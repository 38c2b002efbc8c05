package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// BatchStatus mirrors the payout batch states the sandbox reports.
type BatchStatus string

const (
	StatusPending BatchStatus = "PENDING"
	StatusSuccess BatchStatus = "SUCCESS"
	StatusDenied  BatchStatus = "DENIED"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type payoutItem struct {
	RecipientType string `json:"recipient_type"`
	Amount        struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Receiver     string `json:"receiver"`
	SenderItemID string `json:"sender_item_id"`
	Note         string `json:"note"`
}

type payoutRequest struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
		EmailSubject  string `json:"email_subject"`
	} `json:"sender_batch_header" binding:"required"`
	Items []payoutItem `json:"items" binding:"required,min=1"`
}

type batchRecord struct {
	PayoutBatchID string
	SenderBatchID string
	Status        BatchStatus
	Items         []payoutItem
	CreatedAt     time.Time
}

// MockPayPal keeps accepted batches in memory and, when configured,
// pushes the matching webhook events back at the engine after a delay.
type MockPayPal struct {
	mu          sync.Mutex
	batches     map[string]*batchRecord
	successRate float64
	settleDelay time.Duration
	webhookURL  string
	rng         *rand.Rand
}

func NewMockPayPal(successRate float64, settleDelay time.Duration, webhookURL string) *MockPayPal {
	return &MockPayPal{
		batches:     make(map[string]*batchRecord),
		successRate: successRate,
		settleDelay: settleDelay,
		webhookURL:  webhookURL,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockPayPal) accept(req *payoutRequest) *batchRecord {
	rec := &batchRecord{
		PayoutBatchID: "SIMBATCH-" + uuid.New().String()[:13],
		SenderBatchID: req.SenderBatchHeader.SenderBatchID,
		Status:        StatusPending,
		Items:         req.Items,
		CreatedAt:     time.Now(),
	}
	m.mu.Lock()
	m.batches[rec.PayoutBatchID] = rec
	m.mu.Unlock()
	return rec
}

func (m *MockPayPal) get(id string) *batchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[id]
}

// settle resolves the batch after the configured delay and fires the
// webhook events a real sandbox would deliver.
func (m *MockPayPal) settle(rec *batchRecord) {
	time.Sleep(m.settleDelay)

	succeed := m.rng.Float64() < m.successRate

	m.mu.Lock()
	if succeed {
		rec.Status = StatusSuccess
	} else {
		rec.Status = StatusDenied
	}
	m.mu.Unlock()

	if m.webhookURL == "" {
		return
	}

	if succeed {
		for _, item := range rec.Items {
			m.pushWebhook(map[string]any{
				"id":         "WHSIM-" + uuid.New().String()[:8],
				"event_type": "PAYMENT.PAYOUTS-ITEM.SUCCEEDED",
				"resource": map[string]any{
					"payout_item_id":  "SIMITEM-" + uuid.New().String()[:8],
					"payout_batch_id": rec.PayoutBatchID,
					"sender_item_id":  item.SenderItemID,
				},
			})
		}
		m.pushWebhook(map[string]any{
			"id":         "WHSIM-" + uuid.New().String()[:8],
			"event_type": "PAYMENT.PAYOUTSBATCH.SUCCESS",
			"resource": map[string]any{
				"batch_header": map[string]any{
					"payout_batch_id": rec.PayoutBatchID,
					"batch_status":    "SUCCESS",
				},
			},
		})
		return
	}

	m.pushWebhook(map[string]any{
		"id":         "WHSIM-" + uuid.New().String()[:8],
		"event_type": "PAYMENT.PAYOUTSBATCH.DENIED",
		"resource": map[string]any{
			"batch_header": map[string]any{
				"payout_batch_id": rec.PayoutBatchID,
				"batch_status":    "DENIED",
			},
		},
	})
}

func (m *MockPayPal) pushWebhook(event map[string]any) {
	body, _ := json.Marshal(event)
	resp, err := http.Post(m.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("url", m.webhookURL).Msg("Webhook delivery failed")
		return
	}
	resp.Body.Close()
	log.Info().
		Str("event_type", event["event_type"].(string)).
		Int("status", resp.StatusCode).
		Msg("Webhook delivered")
}

type Handler struct {
	paypal *MockPayPal
}

func NewHandler(paypal *MockPayPal) *Handler {
	return &Handler{paypal: paypal}
}

// Token handles the OAuth client-credentials exchange. Any non-empty
// basic auth pair is accepted except the literal "bad" client id,
// which lets integration setups exercise the rejection path.
func (h *Handler) Token(c *gin.Context) {
	clientID, _, ok := c.Request.BasicAuth()
	if !ok || clientID == "" || clientID == "bad" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_client",
			"error_description": "Client Authentication failed",
		})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: "SIM-" + uuid.New().String(),
		TokenType:   "Bearer",
		ExpiresIn:   32400,
	})
}

// CreatePayout accepts a payout batch and schedules its settlement.
func (h *Handler) CreatePayout(c *gin.Context) {
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"name":    "VALIDATION_ERROR",
			"message": err.Error(),
		})
		return
	}

	rec := h.paypal.accept(&req)
	go h.paypal.settle(rec)

	log.Info().
		Str("payout_batch_id", rec.PayoutBatchID).
		Str("sender_batch_id", rec.SenderBatchID).
		Int("items", len(rec.Items)).
		Msg("Payout batch accepted")

	c.JSON(http.StatusCreated, gin.H{
		"batch_header": gin.H{
			"payout_batch_id": rec.PayoutBatchID,
			"batch_status":    rec.Status,
			"sender_batch_header": gin.H{
				"sender_batch_id": rec.SenderBatchID,
			},
		},
	})
}

// GetPayout reports the batch's current state with per-item detail.
func (h *Handler) GetPayout(c *gin.Context) {
	id := c.Param("payout_batch_id")
	rec := h.paypal.get(id)
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"name":    "INVALID_RESOURCE_ID",
			"message": "Requested resource ID was not found.",
		})
		return
	}

	itemStatus := "PENDING"
	if rec.Status == StatusSuccess {
		itemStatus = "SUCCESS"
	} else if rec.Status == StatusDenied {
		itemStatus = "DENIED"
	}

	items := make([]gin.H, len(rec.Items))
	for i, item := range rec.Items {
		items[i] = gin.H{
			"payout_item_id":     fmt.Sprintf("SIMITEM-%s-%d", id, i),
			"transaction_status": itemStatus,
			"payout_item": gin.H{
				"sender_item_id": item.SenderItemID,
				"receiver":       item.Receiver,
				"amount":         item.Amount,
			},
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"batch_header": gin.H{
			"payout_batch_id": rec.PayoutBatchID,
			"batch_status":    rec.Status,
		},
		"items": items,
	})
}

// VerifySignature always reports SUCCESS; the simulator has no cert
// chain to check against.
func (h *Handler) VerifySignature(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"verification_status": "SUCCESS"})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/oauth2/token", handler.Token)
		v1.POST("/payments/payouts", handler.CreatePayout)
		v1.GET("/payments/payouts/:payout_batch_id", handler.GetPayout)
		v1.POST("/notifications/verify-webhook-signature", handler.VerifySignature)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	settleDelay := getEnvDuration("SETTLE_DELAY", 2*time.Second)
	webhookURL := getEnv("WEBHOOK_URL", "")

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("settle_delay", settleDelay).
		Str("webhook_url", webhookURL).
		Msg("Starting Mock PayPal Sandbox")

	paypal := NewMockPayPal(successRate, settleDelay, webhookURL)
	handler := NewHandler(paypal)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
