package push

import (
	"context"
	"errors"

	"school-inbox/internal/config"
	"school-inbox/internal/logging"
	"school-inbox/internal/model"
)

type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg model.Message) error
}

// Sinks builds the sinks enabled in cfg: DingTalk when a webhook is set,
// Redis when an address is set.
func Sinks(cfg config.PushConfig) []Sink {
	var sinks []Sink
	if cfg.Dingding.Webhook != "" {
		sinks = append(sinks, NewDingTalk(cfg.Dingding))
	}
	if cfg.Redis.Addr != "" {
		sinks = append(sinks, NewRedis(cfg.Redis))
	}
	return sinks
}

// Dispatcher hands every message to every sink in order. Failures are
// logged and do not stop the remaining deliveries.
type Dispatcher struct {
	sinks  []Sink
	rate   *RateLimiter
	logger *logging.Logger
}

func NewDispatcher(sinks []Sink, rate *RateLimiter, logger *logging.Logger) *Dispatcher {
	if rate == nil {
		rate = NewRateLimiter(0)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{sinks: sinks, rate: rate, logger: logger}
}

// Dispatch returns the number of successful deliveries.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []model.Message) int {
	delivered := 0
	for _, msg := range msgs {
		for _, sink := range d.sinks {
			if !d.rate.Allow() {
				d.logger.Warn("rate limited", logging.Field{Key: "sink", Val: sink.Name()}, logging.Field{Key: "id", Val: msg.ID})
				continue
			}
			err := sink.Deliver(ctx, msg)
			switch {
			case errors.Is(err, ErrNoChannel):
				d.logger.Debug("no channel, not published", logging.Field{Key: "sink", Val: sink.Name()}, logging.Field{Key: "id", Val: msg.ID})
			case err != nil:
				d.logger.Error("push failed", logging.Field{Key: "sink", Val: sink.Name()}, logging.Field{Key: "id", Val: msg.ID}, logging.Field{Key: "err", Val: err})
			default:
				delivered++
				d.logger.Debug("pushed", logging.Field{Key: "sink", Val: sink.Name()}, logging.Field{Key: "id", Val: msg.ID}, logging.Field{Key: "channel", Val: msg.Channel})
			}
		}
	}
	return delivered
}

// Close releases sinks holding connections.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, sink := range d.sinks {
		if c, ok := sink.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
