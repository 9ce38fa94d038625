// Package gateway talks to the acquirer's JSON API. One Client is built at
// startup from configuration and injected wherever operations are sent.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

const maxResponseBytes = 1 << 20

type Config struct {
	BaseURL   string
	AccountID string
	SecretKey string
}

// Response is the gw section of a successful envelope.
type Response struct {
	StatusCode    int
	StatusText    string
	TransactionID string
	RedirectURL   string
	Raw           json.RawMessage
}

type gwSection struct {
	GatewayTransactionID string `json:"gateway-transaction-id"`
	StatusCode           int    `json:"status-code"`
	StatusText           string `json:"status-text"`
	RedirectURL          string `json:"redirect-url"`
}

type errorSection struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	GW    *gwSection    `json:"gw"`
	Error *errorSection `json:"error"`
}

type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient never retries; the request timeout belongs to httpClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient}
}

// Send builds, sends and decodes a single operation.
func (c *Client) Send(ctx context.Context, op *Operation) (*Response, error) {
	if op == nil {
		return nil, fmt.Errorf("%w: nil operation", ErrInvalidOperation)
	}
	kind := op.Kind().String()

	ctx, span := telemetry.Tracer.Start(ctx, "gateway."+kind)
	defer span.End()

	resp, err := c.send(ctx, op)

	outcome := "ok"
	if err != nil {
		outcome = outcomeLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		telemetry.Logger.Warn("Acquirer operation failed",
			zap.String("operation", kind),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	} else {
		span.SetAttributes(
			attribute.Int("acquirer.status_code", resp.StatusCode),
			attribute.String("acquirer.transaction_id", resp.TransactionID),
		)
		telemetry.Logger.Info("Acquirer response",
			zap.String("operation", kind),
			zap.String("transaction_id", resp.TransactionID),
			zap.Int("status_code", resp.StatusCode),
			zap.Bool("redirect", resp.RedirectURL != ""),
		)
	}
	telemetry.GatewayRequests.WithLabelValues(kind, outcome).Inc()
	return resp, err
}

func (c *Client) send(ctx context.Context, op *Operation) (*Response, error) {
	req, err := build(op)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(requestEnvelope{
		Auth: authData{AccountID: c.cfg.AccountID, SecretKey: c.cfg.SecretKey},
		Data: req.data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op.Kind(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.cfg.BaseURL+req.path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op.Kind(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	telemetry.GatewayLatency.WithLabelValues(op.Kind().String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &OutcomeUnknownError{Kind: op.Kind(), Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &OutcomeUnknownError{Kind: op.Kind(), Err: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: httpResp.StatusCode, Body: string(raw)}
	}

	return decode(raw)
}

func decode(raw []byte) (*Response, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ProtocolError{Reason: "malformed JSON", Err: err}
	}

	if env.Error != nil && (env.Error.Code != 0 || env.Error.Message != "") {
		return nil, &GatewayError{Code: env.Error.Code, Message: env.Error.Message}
	}
	if env.GW == nil {
		return nil, &ProtocolError{Reason: "response has neither gw nor error section"}
	}

	return &Response{
		StatusCode:    env.GW.StatusCode,
		StatusText:    env.GW.StatusText,
		TransactionID: env.GW.GatewayTransactionID,
		RedirectURL:   env.GW.RedirectURL,
		Raw:           json.RawMessage(raw),
	}, nil
}

func outcomeLabel(err error) string {
	var (
		te *TransportError
		pe *ProtocolError
		ge *GatewayError
		ou *OutcomeUnknownError
	)
	switch {
	case errors.As(err, &te):
		return "transport_error"
	case errors.As(err, &pe):
		return "protocol_error"
	case errors.As(err, &ge):
		return "gateway_error"
	case errors.As(err, &ou):
		return "unknown_outcome"
	case errors.Is(err, ErrInvalidOperation), errors.Is(err, ErrUnknownOperation):
		return "invalid_operation"
	}
	return "error"
}
