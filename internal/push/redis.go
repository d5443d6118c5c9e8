package push

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"school-inbox/internal/config"
	"school-inbox/internal/model"
)

var ErrNoChannel = errors.New("message has no channel")

// Redis publishes each message as JSON on prefix+channel.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(cfg config.RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client, prefix: cfg.ChannelPrefix}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Deliver(ctx context.Context, msg model.Message) error {
	if msg.Channel == "" {
		return ErrNoChannel
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.prefix+msg.Channel, payload).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
