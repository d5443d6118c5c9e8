package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"school-inbox/internal/browser"
	"school-inbox/internal/config"
	"school-inbox/internal/logging"
)

var ErrAuthentication = errors.New("authentication failed")

type Opener func(ctx context.Context, name string, opts browser.Options) (browser.Session, error)

// Controller owns the browser session for one run: it logs in and hands
// the session to the extractor. Close must be called exactly once the
// controller is no longer needed; repeated calls are no-ops.
type Controller struct {
	cfg     config.PortalConfig
	session browser.Session
	logger  *logging.Logger

	closeOnce sync.Once
	closeErr  error
}

func NewController(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Controller, error) {
	return NewControllerWith(ctx, cfg, logger, browser.Open)
}

// NewControllerWith starts the session through open instead of browser.Open.
func NewControllerWith(ctx context.Context, cfg config.Config, logger *logging.Logger, open Opener) (*Controller, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	session, err := open(ctx, cfg.Driver.Name, browser.OptionsFrom(cfg.Driver, logger))
	if err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg.Portal, session: session, logger: logger}, nil
}

func (c *Controller) Session() browser.Session {
	return c.session
}

// Authenticate runs the portal login flow and returns once the messages
// icon of the logged-in home page is present.
func (c *Controller) Authenticate(ctx context.Context) error {
	sel := c.cfg.Selectors
	if err := c.session.Navigate(ctx, c.cfg.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	top, err := c.session.FindElement(browser.Class(sel.LoginButton))
	if err != nil {
		return err
	}
	if err := top.Click(ctx); err != nil {
		return err
	}
	items, err := c.session.FindElements(browser.Class(sel.LoginMenuItem))
	if err != nil {
		return err
	}
	if len(items) <= sel.LoginMenuIndex {
		return fmt.Errorf("login menu has %d items, want index %d: %w", len(items), sel.LoginMenuIndex, browser.ErrElementNotFound)
	}
	if err := items[sel.LoginMenuIndex].Click(ctx); err != nil {
		return err
	}
	if err := c.session.SwitchFrame(ctx, browser.ID(sel.LoginFrame)); err != nil {
		return err
	}
	if err := c.typeInto(browser.ID(sel.LoginField), c.cfg.Login); err != nil {
		return err
	}
	if err := c.typeInto(browser.ID(sel.PasswordField), c.cfg.Password); err != nil {
		return err
	}
	submit, err := c.session.FindElement(browser.ID(sel.SubmitButton))
	if err != nil {
		return err
	}
	if err := submit.Click(ctx); err != nil {
		return err
	}
	if _, err := c.session.WaitForElement(ctx, browser.ID(sel.InboxIcon)); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	c.logger.Info("logged in to register", logging.Field{Key: "login", Val: c.cfg.Login})
	return nil
}

func (c *Controller) typeInto(loc browser.Locator, text string) error {
	el, err := c.session.FindElement(loc)
	if err != nil {
		return err
	}
	return el.SendKeys(text)
}

// Close releases the browser.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.session.Close()
	})
	return c.closeErr
}
