package scraper

import (
	"context"
	"errors"
	"fmt"

	"school-inbox/internal/browser"
	"school-inbox/internal/config"
	"school-inbox/internal/filter"
	"school-inbox/internal/logging"
	"school-inbox/internal/model"
)

var ErrMessageNotFound = errors.New("message not found")

// NotFoundError carries the id that was looked up.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message of specified id %s not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrMessageNotFound
}

// RowError reports a listing row missing a cell, the hidden id input or the
// subject link. It wraps browser.ErrElementNotFound.
type RowError struct {
	Row   int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("listing row %d: %s: %v", e.Row, e.Field, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// listing columns
const (
	colID      = 0
	colSender  = 2
	colSubject = 3
	colDate    = 4
	numCols    = 5
)

// Scraper extracts messages from an authenticated session. It keeps no
// state between calls.
type Scraper struct {
	session browser.Session
	filter  *filter.Engine
	sel     config.SelectorsConfig
	logger  *logging.Logger
}

func New(session browser.Session, engine *filter.Engine, sel config.SelectorsConfig, logger *logging.Logger) *Scraper {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scraper{session: session, filter: engine, sel: sel, logger: logger}
}

// FetchUnread returns the unread messages from roster senders whose body
// matches the relevance pattern, in listing order.
func (s *Scraper) FetchUnread(ctx context.Context) ([]model.Message, error) {
	rows, err := s.openInbox(ctx)
	if err != nil {
		return nil, err
	}

	var msgs []model.Message
	for i, row := range rows {
		cells, err := s.cells(i, row)
		if err != nil {
			return nil, err
		}
		style, err := cells[colSender].Attribute("style")
		if err != nil {
			return nil, &RowError{Row: i, Field: "sender style", Err: err}
		}
		if !filter.IsUnread(style) {
			continue
		}
		sender, err := cells[colSender].Text()
		if err != nil {
			return nil, &RowError{Row: i, Field: "sender", Err: err}
		}
		channel, ok := s.filter.Channel(sender)
		if !ok {
			s.logger.Debug("skipping unknown sender", logging.Field{Key: "sender", Val: sender})
			continue
		}
		msg, err := s.readRow(i, cells)
		if err != nil {
			return nil, err
		}
		msg.Channel = channel
		msgs = append(msgs, msg)
	}

	matched := make([]model.Message, 0, len(msgs))
	for i := range msgs {
		if err := s.fetchText(ctx, &msgs[i]); err != nil {
			return nil, err
		}
		if s.filter.Relevant(msgs[i]) {
			matched = append(matched, msgs[i])
		}
	}
	s.logger.Debug("unread scanned", logging.Field{Key: "candidates", Val: len(msgs)}, logging.Field{Key: "matched", Val: len(matched)})
	return matched, nil
}

// FetchMessage returns the first listing message with the given id, with
// its channel resolved but without sender or relevance filtering.
func (s *Scraper) FetchMessage(ctx context.Context, id string) (model.Message, error) {
	rows, err := s.openInbox(ctx)
	if err != nil {
		return model.Message{}, err
	}

	for i, row := range rows {
		cells, err := s.cells(i, row)
		if err != nil {
			return model.Message{}, err
		}
		rowID, err := s.rowID(i, cells)
		if err != nil {
			return model.Message{}, err
		}
		if rowID != id {
			continue
		}
		msg, err := s.readRow(i, cells)
		if err != nil {
			return model.Message{}, err
		}
		msg.Channel = filter.ResolveChannel(msg.Sender, s.filter.Roster)
		if err := s.fetchText(ctx, &msg); err != nil {
			return model.Message{}, err
		}
		return msg, nil
	}
	return model.Message{}, &NotFoundError{ID: id}
}

func (s *Scraper) openInbox(ctx context.Context) ([]browser.Element, error) {
	icon, err := s.session.WaitForElement(ctx, browser.ID(s.sel.InboxIcon))
	if err != nil {
		return nil, err
	}
	if err := icon.Click(ctx); err != nil {
		return nil, fmt.Errorf("open inbox: %w", err)
	}
	inbox, err := s.session.FindElement(browser.CSS(s.sel.Listing))
	if err != nil {
		return nil, err
	}
	return inbox.FindElements(browser.Tag("tr"))
}

func (s *Scraper) cells(i int, row browser.Element) ([]browser.Element, error) {
	cells, err := row.FindElements(browser.Tag("td"))
	if err != nil {
		return nil, &RowError{Row: i, Field: "cells", Err: err}
	}
	if len(cells) < numCols {
		return nil, &RowError{Row: i, Field: "cells", Err: fmt.Errorf("%w: have %d of %d columns", browser.ErrElementNotFound, len(cells), numCols)}
	}
	return cells, nil
}

func (s *Scraper) rowID(i int, cells []browser.Element) (string, error) {
	input, err := cells[colID].FindElement(browser.Tag("input"))
	if err != nil {
		return "", &RowError{Row: i, Field: "id input", Err: err}
	}
	id, err := input.Attribute("value")
	if err != nil {
		return "", &RowError{Row: i, Field: "id input", Err: err}
	}
	return id, nil
}

// readRow builds a message from the listing columns; Text stays empty.
func (s *Scraper) readRow(i int, cells []browser.Element) (model.Message, error) {
	id, err := s.rowID(i, cells)
	if err != nil {
		return model.Message{}, err
	}
	sender, err := cells[colSender].Text()
	if err != nil {
		return model.Message{}, &RowError{Row: i, Field: "sender", Err: err}
	}
	subject, err := cells[colSubject].Text()
	if err != nil {
		return model.Message{}, &RowError{Row: i, Field: "subject", Err: err}
	}
	link, err := cells[colSubject].FindElement(browser.Tag("a"))
	if err != nil {
		return model.Message{}, &RowError{Row: i, Field: "subject link", Err: err}
	}
	href, err := link.Attribute("href")
	if err != nil {
		return model.Message{}, &RowError{Row: i, Field: "subject link", Err: err}
	}
	date, err := cells[colDate].Text()
	if err != nil {
		return model.Message{}, &RowError{Row: i, Field: "date", Err: err}
	}
	return model.Message{
		ID:      id,
		Sender:  sender,
		Subject: subject,
		URL:     href,
		Date:    date,
	}, nil
}

func (s *Scraper) fetchText(ctx context.Context, msg *model.Message) error {
	if err := s.session.Navigate(ctx, msg.URL); err != nil {
		return fmt.Errorf("open message %s: %w", msg.ID, err)
	}
	body, err := s.session.FindElement(browser.Class(s.sel.MessageBody))
	if err != nil {
		return fmt.Errorf("message %s body: %w", msg.ID, err)
	}
	text, err := body.Text()
	if err != nil {
		return fmt.Errorf("message %s body: %w", msg.ID, err)
	}
	msg.Text = text
	return nil
}
