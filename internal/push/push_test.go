package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school-inbox/internal/config"
	"school-inbox/internal/model"
)

var sample = model.Message{
	ID:      "1",
	Sender:  "Mrs. Smith",
	Channel: "math",
	Subject: "Exam",
	URL:     "https://portal/messages/1",
	Date:    "2024-03-01",
	Text:    "The exam is on Monday.",
}

func TestRenderTemplate(t *testing.T) {
	got := RenderTemplate("${sender}: ${subject} ${missing}", sample.Values())
	assert.Equal(t, "Mrs. Smith: Exam ${missing}", got)
}

func TestRenderTemplateLeavesPlaceholdersInValues(t *testing.T) {
	msg := sample
	msg.Text = "reply with ${channel} and ${sender}"
	for i := 0; i < 20; i++ {
		got := RenderTemplate("${channel}: ${text}", msg.Values())
		assert.Equal(t, "math: reply with ${channel} and ${sender}", got)
	}
}

func TestDingTalkDeliver(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.NotEmpty(t, r.URL.Query().Get("sign"))
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	d := NewDingTalk(config.DingdingConfig{Webhook: srv.URL + "/robot/send?access_token=t", Secret: "s", MsgType: "text", Template: "${channel}: ${text}"})
	require.NoError(t, d.Deliver(context.Background(), sample))

	assert.Equal(t, "text", body["msgtype"])
	assert.Equal(t, map[string]any{"content": "math: The exam is on Monday."}, body["text"])
}

func TestDingTalkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":310000,"errmsg":"sign not match"}`))
	}))
	defer srv.Close()

	d := NewDingTalk(config.DingdingConfig{Webhook: srv.URL})
	err := d.Deliver(context.Background(), sample)
	assert.EqualError(t, err, "dingding error 310000: sign not match")
}

func TestRedisPublishesOnChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(ctx, "inbox:math")
	defer ps.Close()
	_, err := ps.Receive(ctx)
	require.NoError(t, err)

	r := NewRedis(config.RedisConfig{Addr: mr.Addr(), ChannelPrefix: "inbox:"})
	defer r.Close()
	require.NoError(t, r.Deliver(ctx, sample))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	m, err := ps.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var got model.Message
	require.NoError(t, json.Unmarshal([]byte(m.Payload), &got))
	assert.Equal(t, sample, got)

	assert.ErrorIs(t, r.Deliver(ctx, model.Message{ID: "2"}), ErrNoChannel)
}

type recordingSink struct {
	name string
	err  error
	got  []string
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, msg model.Message) error {
	s.got = append(s.got, msg.ID)
	return s.err
}

func TestDispatcher(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	bad := &recordingSink{name: "bad", err: errors.New("down")}
	d := NewDispatcher([]Sink{bad, ok}, nil, nil)

	n := d.Dispatch(context.Background(), []model.Message{{ID: "1"}, {ID: "2"}})
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"1", "2"}, ok.got)
	assert.Equal(t, []string{"1", "2"}, bad.got)
}

func TestDispatcherRateLimited(t *testing.T) {
	sink := &recordingSink{name: "ok"}
	d := NewDispatcher([]Sink{sink}, NewRateLimiter(2), nil)

	n := d.Dispatch(context.Background(), []model.Message{{ID: "1"}, {ID: "2"}, {ID: "3"}})
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"1", "2"}, sink.got)
}

func TestSinks(t *testing.T) {
	assert.Empty(t, Sinks(config.PushConfig{}))

	sinks := Sinks(config.PushConfig{
		Dingding: config.DingdingConfig{Webhook: "http://example.invalid"},
		Redis:    config.RedisConfig{Addr: "127.0.0.1:0"},
	})
	require.Len(t, sinks, 2)
	assert.Equal(t, "dingding", sinks[0].Name())
	assert.Equal(t, "redis", sinks[1].Name())
}

func TestUnlimitedRate(t *testing.T) {
	r := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		assert.True(t, r.Allow())
	}
}
