package core

import (
	"context"

	"school-inbox/internal/browser"
	"school-inbox/internal/config"
	"school-inbox/internal/filter"
	"school-inbox/internal/logging"
	"school-inbox/internal/model"
	"school-inbox/internal/portal"
	"school-inbox/internal/push"
	"school-inbox/internal/scraper"
)

// Manager runs one extraction per call: it opens a browser, logs in,
// extracts, delivers the result to the configured sinks and releases the
// browser on every path out.
type Manager struct {
	cfg    config.Config
	logger *logging.Logger
	open   portal.Opener
	sinks  []push.Sink
}

func NewManager(cfg config.Config, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{cfg: cfg, logger: logger, open: browser.Open, sinks: push.Sinks(cfg.Push)}
}

func (m *Manager) Unread(ctx context.Context) ([]model.Message, error) {
	return m.run(ctx, func(ctx context.Context, s *scraper.Scraper) ([]model.Message, error) {
		return s.FetchUnread(ctx)
	})
}

func (m *Manager) Message(ctx context.Context, id string) (model.Message, error) {
	msgs, err := m.run(ctx, func(ctx context.Context, s *scraper.Scraper) ([]model.Message, error) {
		msg, err := s.FetchMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		return []model.Message{msg}, nil
	})
	if err != nil {
		return model.Message{}, err
	}
	return msgs[0], nil
}

type extraction func(ctx context.Context, s *scraper.Scraper) ([]model.Message, error)

func (m *Manager) run(ctx context.Context, extract extraction) ([]model.Message, error) {
	ctrl, err := portal.NewControllerWith(ctx, m.cfg, m.logger, m.open)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			m.logger.Warn("browser shutdown failed", logging.Field{Key: "err", Val: err})
		}
	}()

	if err := ctrl.Authenticate(ctx); err != nil {
		return nil, err
	}

	engine := &filter.Engine{Roster: m.cfg.Roster, Relevance: m.cfg.RelevancePattern()}
	s := scraper.New(ctrl.Session(), engine, m.cfg.Portal.Selectors, m.logger)
	msgs, err := extract(ctx, s)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("extracted", logging.Field{Key: "count", Val: len(msgs)})

	if len(m.sinks) > 0 && len(msgs) > 0 {
		d := push.NewDispatcher(m.sinks, push.NewRateLimiter(m.cfg.Push.MaxPushPerMinute), m.logger)
		defer d.Close()
		d.Dispatch(ctx, msgs)
	}
	return msgs, nil
}
