package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	c "github.com/smartdepot/storefront/internal/cart/cache"
	r "github.com/smartdepot/storefront/internal/cart/repository"
	"github.com/smartdepot/storefront/internal/domain"
)

const (
	minReadBackoff = 100 * time.Millisecond
	maxReadBackoff = 5 * time.Second
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller removes ordered products from a user's cart once the order no
// longer depends on a pending card payment.
type Poller struct {
	repo   r.CartRepository
	cache  c.CartCache
	reader messageReader
	log    *zap.Logger
}

func NewPoller(repo r.CartRepository, cache c.CartCache, log *zap.Logger, topic, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{repo: repo, cache: cache, reader: reader, log: log}
}

// Run consumes until ctx is done or the reader is closed. Read errors back
// off exponentially.
func (p *Poller) Run(ctx context.Context) {
	backoff := minReadBackoff
	for {
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			p.log.Error("read order event", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxReadBackoff)
			continue
		}
		backoff = minReadBackoff

		if err := p.handle(ctx, m); err != nil {
			p.log.Error("handle order event", zap.String("key", string(m.Key)), zap.Error(err))
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("close kafka reader", zap.Error(err))
	}
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	kind := eventType(m)
	if kind != domain.EventOrderPlaced && kind != domain.EventOrderPaid {
		return nil
	}

	var ev domain.OrderEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return fmt.Errorf("parse order event: %w", err)
	}
	if ev.UserID == 0 {
		return errors.New("order event without user_id")
	}
	if !settlesCart(kind, ev) {
		return nil
	}

	err := p.repo.RemoveProducts(ctx, ev.UserID, ev.ProductIDs...)
	if err != nil && !errors.Is(err, r.ErrCartNotFound) {
		return fmt.Errorf("remove ordered products: %w", err)
	}
	if err := p.cache.Invalidate(ctx, ev.UserID); err != nil {
		return fmt.Errorf("invalidate cached cart: %w", err)
	}

	p.log.Info("ordered products removed from cart",
		zap.Int64("user_id", ev.UserID),
		zap.Int64("order_id", ev.OrderID),
		zap.Int64s("product_ids", ev.ProductIDs))
	return nil
}

// settlesCart: cash orders leave the cart when placed; card orders only once
// the gateway confirmed payment, so a canceled card checkout keeps the cart.
func settlesCart(kind string, ev domain.OrderEvent) bool {
	if kind == domain.EventOrderPlaced {
		return ev.PaymentMethod != string(domain.PaymentMethodCard)
	}
	return ev.PaymentRef != ""
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
