package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"school-inbox/internal/browser"
	"school-inbox/internal/config"
	"school-inbox/internal/logging"
	"school-inbox/internal/model"
	"school-inbox/internal/portaltest"
	"school-inbox/internal/push"
	"school-inbox/internal/scraper"
)

type trackedSession struct {
	browser.Session
	closes *int
}

func (s trackedSession) Close() error {
	*s.closes++
	return s.Session.Close()
}

type collectSink struct {
	got []model.Message
}

func (c *collectSink) Name() string { return "collect" }

func (c *collectSink) Deliver(_ context.Context, msg model.Message) error {
	c.got = append(c.got, msg)
	return nil
}

func newManager(t *testing.T, srv *portaltest.Server, password string) (*Manager, *int, *collectSink) {
	t.Helper()
	doc := "driver: {name: static, wait_timeout_seconds: 5}\n" +
		"portal: {login_url: \"" + srv.LoginURL() + "\", login: " + portaltest.Login + ", password: " + password + "}\n" +
		"roster:\n  Smith: math\n  Kowalska: art\n" +
		"relevance: exam\n"
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)

	closes := new(int)
	sink := &collectSink{}
	m := NewManager(cfg, logging.Nop())
	m.sinks = []push.Sink{sink}
	m.open = func(ctx context.Context, name string, opts browser.Options) (browser.Session, error) {
		s, err := browser.Open(ctx, name, opts)
		if err != nil {
			return nil, err
		}
		return trackedSession{Session: s, closes: closes}, nil
	}
	return m, closes, sink
}

func fixture() *portaltest.Server {
	return portaltest.New(
		portaltest.Row{ID: "1", Sender: "Mrs. Smith", Subject: "Exam", Date: "2024-03-01", Body: "The exam is on Monday.", Unread: true},
		portaltest.Row{ID: "2", Sender: "Mr. Jones", Subject: "Exam", Date: "2024-03-02", Body: "Another exam.", Unread: true},
		portaltest.Row{ID: "3", Sender: "Mrs. Smith", Subject: "Trip", Date: "2024-03-03", Body: "Trip to the zoo.", Unread: true},
	)
}

func TestUnreadDeliversAndReleases(t *testing.T) {
	srv := fixture()
	defer srv.Close()
	m, closes, sink := newManager(t, srv, portaltest.Password)

	msgs, err := m.Unread(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "1", msgs[0].ID)
	assert.Equal(t, msgs, sink.got)
	assert.Equal(t, 1, *closes)
}

func TestUnreadLogsOnlyLoginAtInfo(t *testing.T) {
	srv := fixture()
	defer srv.Close()
	m, _, sink := newManager(t, srv, portaltest.Password)
	obs, logs := observer.New(zap.DebugLevel)
	m.logger = logging.Wrap(zap.New(obs))

	_, err := m.Unread(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.got, 1)

	info := logs.Filter(func(e observer.LoggedEntry) bool { return e.Level >= zapcore.InfoLevel }).All()
	require.Len(t, info, 1)
	assert.Equal(t, "logged in to register", info[0].Message)
	assert.Equal(t, 1, logs.FilterMessage("extracted").Len())
	assert.Equal(t, 1, logs.FilterMessage("pushed").Len())
}

func TestMessage(t *testing.T) {
	srv := fixture()
	defer srv.Close()
	m, closes, _ := newManager(t, srv, portaltest.Password)

	msg, err := m.Message(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "Trip to the zoo.", msg.Text)
	assert.Equal(t, "math", msg.Channel)
	assert.Equal(t, 1, *closes)
}

func TestReleasesOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		password string
		run      func(m *Manager) error
		want     error
	}{
		{
			name:     "message not found",
			password: portaltest.Password,
			run: func(m *Manager) error {
				_, err := m.Message(context.Background(), "999")
				return err
			},
			want: scraper.ErrMessageNotFound,
		},
		{
			name:     "login rejected",
			password: "wrong",
			run: func(m *Manager) error {
				_, err := m.Unread(context.Background())
				return err
			},
			want: browser.ErrElementNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fixture()
			defer srv.Close()
			m, closes, sink := newManager(t, srv, tt.password)

			err := tt.run(m)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, *closes)
			assert.Empty(t, sink.got)
		})
	}
}

func TestCanceledContextStillReleases(t *testing.T) {
	srv := fixture()
	defer srv.Close()
	m, closes, _ := newManager(t, srv, portaltest.Password)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Unread(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, *closes)
}
