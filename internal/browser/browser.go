// Package browser exposes the page primitives the extractor works with:
// navigate, wait for an element, query elements, read text or attributes,
// click. Each engine implements Session; Open picks one by driver name.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"school-inbox/internal/config"
	"school-inbox/internal/logging"
)

var ErrElementNotFound = errors.New("element not found")

type By string

const (
	ByID    By = "id"
	ByClass By = "class"
	ByCSS   By = "css"
	ByTag   By = "tag"
)

type Locator struct {
	By    By
	Value string
}

func ID(v string) Locator    { return Locator{By: ByID, Value: v} }
func Class(v string) Locator { return Locator{By: ByClass, Value: v} }
func CSS(v string) Locator   { return Locator{By: ByCSS, Value: v} }
func Tag(v string) Locator   { return Locator{By: ByTag, Value: v} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.By, l.Value)
}

func notFound(loc Locator) error {
	return fmt.Errorf("%w: %s", ErrElementNotFound, loc)
}

// Session is one browser owned by a single caller. It is not safe for
// concurrent use.
type Session interface {
	// Navigate loads url and returns once the page is loaded.
	Navigate(ctx context.Context, url string) error
	// WaitForElement blocks until loc matches or the wait budget runs out,
	// in which case the error wraps ErrElementNotFound.
	WaitForElement(ctx context.Context, loc Locator) (Element, error)
	FindElement(loc Locator) (Element, error)
	// FindElements returns an empty slice when nothing matches.
	FindElements(loc Locator) ([]Element, error)
	// SwitchFrame moves the session into the iframe matched by loc.
	SwitchFrame(ctx context.Context, loc Locator) error
	Close() error
}

type Element interface {
	// Text is the rendered text content, trimmed.
	Text() (string, error)
	// Attribute returns "" when the attribute is absent.
	Attribute(name string) (string, error)
	Click(ctx context.Context) error
	SendKeys(keys string) error
	FindElement(loc Locator) (Element, error)
	FindElements(loc Locator) ([]Element, error)
}

type Options struct {
	Path        string
	Headless    bool
	WaitTimeout time.Duration
	Width       int
	Height      int
	Logger      *logging.Logger
}

// OptionsFrom maps the driver section of the configuration.
func OptionsFrom(cfg config.DriverConfig, logger *logging.Logger) Options {
	return Options{
		Path:        cfg.Path,
		Headless:    cfg.Headless,
		WaitTimeout: time.Duration(cfg.WaitTimeoutSeconds) * time.Second,
		Width:       cfg.WindowWidth,
		Height:      cfg.WindowHeight,
		Logger:      logger,
	}
}

type Engine func(ctx context.Context, opts Options) (Session, error)

var engines = map[string]Engine{
	config.DriverChrome:  openChrome,
	config.DriverGecko:   openGecko,
	config.DriverPhantom: openPhantom,
	config.DriverStatic:  openStatic,
}

// Open starts the engine registered under name.
func Open(ctx context.Context, name string, opts Options) (Session, error) {
	engine, ok := engines[name]
	if !ok {
		return nil, &config.Error{
			Field:  "driver.name",
			Reason: fmt.Sprintf("%q is incorrect, it must be one of: %s", name, strings.Join(Engines(), ", ")),
		}
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return engine(ctx, opts)
}

func Engines() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
