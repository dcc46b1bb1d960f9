package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Telegram allows roughly 30 messages per second to different chats.
const (
	DefaultDelay     = 100 * time.Millisecond
	DefaultPause     = time.Second
	DefaultBurstSize = 29
)

// Sender delivers one text to one chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// DeliveryError is a failed send to a single recipient. It is counted by the
// dispatcher and never aborts a batch.
type DeliveryError struct {
	Recipient int64
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %d: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Message struct {
	ChatID int64
	Text   string
}

type Result struct {
	Sent   int
	Failed int
}

type Config struct {
	Delay     time.Duration // after every send
	Pause     time.Duration // extra wait after every BurstSize-th send
	BurstSize int
}

func DefaultConfig() Config {
	return Config{Delay: DefaultDelay, Pause: DefaultPause, BurstSize: DefaultBurstSize}
}

// Dispatcher sends batches at a fixed, conservative rate.
type Dispatcher struct {
	sender Sender
	cfg    Config
	clock  clockwork.Clock
	log    *log.Logger
}

func NewDispatcher(sender Sender, cfg Config, clock clockwork.Clock, logger *log.Logger) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	return &Dispatcher{sender: sender, cfg: cfg, clock: clock, log: logger}
}

// Broadcast sends text to every recipient in order.
func (d *Dispatcher) Broadcast(ctx context.Context, text string, recipients []int64) Result {
	msgs := make([]Message, len(recipients))
	for i, id := range recipients {
		msgs[i] = Message{ChatID: id, Text: text}
	}
	return d.Dispatch(ctx, msgs)
}

// Dispatch sends each message once. Failed sends are logged and counted.
// If ctx ends mid-batch the unsent remainder is counted as failed.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []Message) Result {
	var res Result
	if len(msgs) == 0 {
		return res
	}

	batch := uuid.New()
	d.log.Info("broadcast started", "batch", batch, "recipients", len(msgs))

	for i, m := range msgs {
		if err := d.sender.Send(ctx, m.ChatID, m.Text); err != nil {
			res.Failed++
			d.log.Warn("send failed", "batch", batch, "err", &DeliveryError{Recipient: m.ChatID, Err: err})
		} else {
			res.Sent++
			d.log.Debug("sent", "batch", batch, "chat", m.ChatID)
		}

		if err := d.wait(ctx, d.pace(i+1)); err != nil {
			rest := len(msgs) - (i + 1)
			res.Failed += rest
			d.log.Warn("broadcast interrupted", "batch", batch, "err", err, "unsent", rest)
			break
		}
	}

	d.log.Info("broadcast completed", "batch", batch, "sent", res.Sent, "failed", res.Failed)
	return res
}

// pace is the wait that follows the n-th send of a batch (1-based).
func (d *Dispatcher) pace(n int) time.Duration {
	wait := d.cfg.Delay
	if n%d.cfg.BurstSize == 0 {
		wait += d.cfg.Pause
	}
	return wait
}

func (d *Dispatcher) wait(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.clock.After(dur):
		return nil
	}
}
