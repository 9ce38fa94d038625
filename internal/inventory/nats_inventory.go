// Package inventory asks the storefront's stock service to reserve or return
// quantities over NATS request/reply.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

const (
	SubjectReduce  = "inventory.reduce"
	SubjectRestore = "inventory.restore"
)

type requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

type stockRequest struct {
	OrderID string            `json:"order_id"`
	Items   []models.LineItem `json:"items"`
}

type stockReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type NatsInventory struct {
	conn    requester
	timeout time.Duration
}

func NewNatsInventory(conn *nats.Conn, timeout time.Duration) *NatsInventory {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NatsInventory{conn: conn, timeout: timeout}
}

func (i *NatsInventory) Reduce(ctx context.Context, orderID string, items []models.LineItem) error {
	return i.request(ctx, SubjectReduce, orderID, items)
}

func (i *NatsInventory) Restore(ctx context.Context, orderID string, items []models.LineItem) error {
	return i.request(ctx, SubjectRestore, orderID, items)
}

func (i *NatsInventory) request(ctx context.Context, subject, orderID string, items []models.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	payload, err := json.Marshal(stockRequest{OrderID: orderID, Items: items})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	msg, err := i.conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("%s for order %s: %w", subject, orderID, err)
	}

	var reply stockReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("%s for order %s: decode reply: %w", subject, orderID, err)
	}
	if !reply.OK {
		return fmt.Errorf("%s for order %s: %s", subject, orderID, reply.Error)
	}
	return nil
}
