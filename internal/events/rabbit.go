package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

type Rabbit struct {
	mu       sync.Mutex // amqp.Channel no es seguro para publicar concurrentemente
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbit(url, exchange string) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Rabbit{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *Rabbit) Close() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

// Envelope wraps every payload on the wire.
type Envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

func encode(routingKey string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Type: routingKey, Timestamp: time.Now().UTC(), Payload: payload})
}

func (r *Rabbit) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := encode(routingKey, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err = r.ch.PublishWithContext(ctx, r.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err == nil {
		log.Debug().Str("rk", routingKey).Msg("event published")
	}
	return err
}

// Delivery is a received envelope. Payload stays raw until the handler decodes it.
type Delivery struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type Handler func(ctx context.Context, d Delivery) error

func decode(body []byte) (Delivery, error) {
	var d Delivery
	err := json.Unmarshal(body, &d)
	return d, err
}

// Consume binds a durable queue to the exchange and runs h for each message
// until ctx is done. Messages are acked whatever h returns; failures are logged.
func (r *Rabbit) Consume(ctx context.Context, queue, bindingKey string, h Handler) error {
	r.mu.Lock()
	msgs, err := r.subscribe(queue, bindingKey)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				if err := dispatch(ctx, m.Body, h); err != nil {
					log.Error().Err(err).Str("queue", queue).Msg("consume: handler failed")
				}
				_ = m.Ack(false)
			}
		}
	}()
	return nil
}

func (r *Rabbit) subscribe(queue, bindingKey string) (<-chan amqp.Delivery, error) {
	q, err := r.ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	if err := r.ch.QueueBind(q.Name, bindingKey, r.exchange, false, nil); err != nil {
		return nil, err
	}
	return r.ch.Consume(q.Name, queue+"-worker", false, false, false, false, nil)
}

func dispatch(ctx context.Context, body []byte, h Handler) error {
	d, err := decode(body)
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return h(ctx, d)
}
