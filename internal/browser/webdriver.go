package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"

	"school-inbox/internal/logging"
)

// selenium reports a JSON null attribute value with this message.
const nilValue = "nil return value"

type webDriverSession struct {
	wd      selenium.WebDriver
	stop    func() error
	timeout time.Duration
}

func openChrome(ctx context.Context, opts Options) (Session, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	svc, err := selenium.NewChromeDriverService(opts.Path, port, selenium.Output(io.Discard))
	if err != nil {
		return nil, fmt.Errorf("start chromedriver: %w", err)
	}
	args := []string{fmt.Sprintf("--window-size=%d,%d", opts.Width, opts.Height)}
	if opts.Headless {
		args = append(args, "--headless")
	}
	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{Args: args})
	return connect(ctx, caps, fmt.Sprintf("http://localhost:%d/wd/hub", port), svc.Stop, opts)
}

func openGecko(ctx context.Context, opts Options) (Session, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	svc, err := selenium.NewGeckoDriverService(opts.Path, port, selenium.Output(io.Discard))
	if err != nil {
		return nil, fmt.Errorf("start geckodriver: %w", err)
	}
	caps := selenium.Capabilities{"browserName": "firefox"}
	if opts.Headless {
		caps.AddFirefox(firefox.Capabilities{Args: []string{"-headless"}})
	}
	return connect(ctx, caps, fmt.Sprintf("http://localhost:%d", port), svc.Stop, opts)
}

// phantomjs speaks WebDriver itself, there is no separate driver binary.
func openPhantom(ctx context.Context, opts Options) (Session, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(opts.Path, "--webdriver="+strconv.Itoa(port))
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start phantomjs: %w", err)
	}
	stop := func() error {
		if err := cmd.Process.Kill(); err != nil {
			return err
		}
		_ = cmd.Wait()
		return nil
	}
	addr := net.JoinHostPort("localhost", strconv.Itoa(port))
	if err := waitListening(ctx, addr, opts.WaitTimeout); err != nil {
		_ = stop()
		return nil, fmt.Errorf("phantomjs not listening on %s: %w", addr, err)
	}
	caps := selenium.Capabilities{"browserName": "phantomjs"}
	return connect(ctx, caps, "http://"+addr, stop, opts)
}

func connect(ctx context.Context, caps selenium.Capabilities, urlPrefix string, stop func() error, opts Options) (Session, error) {
	if err := ctx.Err(); err != nil {
		_ = stop()
		return nil, err
	}
	wd, err := selenium.NewRemote(caps, urlPrefix)
	if err != nil {
		_ = stop()
		return nil, fmt.Errorf("webdriver session: %w", err)
	}
	if err := wd.ResizeWindow("", opts.Width, opts.Height); err != nil {
		opts.Logger.Warn("resize window failed", logging.Field{Key: "err", Val: err})
	}
	return &webDriverSession{wd: wd, stop: stop, timeout: opts.WaitTimeout}, nil
}

func (s *webDriverSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.wd.Get(url)
}

func (s *webDriverSession) WaitForElement(ctx context.Context, loc Locator) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	by, value := seleniumLocator(loc)
	var found selenium.WebElement
	err := s.wd.WaitWithTimeout(func(wd selenium.WebDriver) (bool, error) {
		el, err := wd.FindElement(by, value)
		if err != nil {
			return false, nil
		}
		found = el
		return true, nil
	}, s.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s after %s", ErrElementNotFound, loc, s.timeout)
	}
	return &webElement{el: found}, nil
}

func (s *webDriverSession) FindElement(loc Locator) (Element, error) {
	by, value := seleniumLocator(loc)
	el, err := s.wd.FindElement(by, value)
	if err != nil {
		return nil, lookupError(loc, err)
	}
	return &webElement{el: el}, nil
}

func (s *webDriverSession) FindElements(loc Locator) ([]Element, error) {
	by, value := seleniumLocator(loc)
	els, err := s.wd.FindElements(by, value)
	if err != nil {
		return nil, err
	}
	return wrapAll(els), nil
}

func (s *webDriverSession) SwitchFrame(ctx context.Context, loc Locator) error {
	el, err := s.WaitForElement(ctx, loc)
	if err != nil {
		return err
	}
	return s.wd.SwitchFrame(el.(*webElement).el)
}

func (s *webDriverSession) Close() error {
	quitErr := s.wd.Quit()
	stopErr := s.stop()
	return errors.Join(quitErr, stopErr)
}

type webElement struct {
	el selenium.WebElement
}

func (e *webElement) Text() (string, error) {
	return e.el.Text()
}

func (e *webElement) Attribute(name string) (string, error) {
	v, err := e.el.GetAttribute(name)
	if err != nil && err.Error() == nilValue {
		return "", nil
	}
	return v, err
}

func (e *webElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.el.Click()
}

func (e *webElement) SendKeys(keys string) error {
	return e.el.SendKeys(keys)
}

func (e *webElement) FindElement(loc Locator) (Element, error) {
	by, value := seleniumLocator(loc)
	el, err := e.el.FindElement(by, value)
	if err != nil {
		return nil, lookupError(loc, err)
	}
	return &webElement{el: el}, nil
}

func (e *webElement) FindElements(loc Locator) ([]Element, error) {
	by, value := seleniumLocator(loc)
	els, err := e.el.FindElements(by, value)
	if err != nil {
		return nil, err
	}
	return wrapAll(els), nil
}

func wrapAll(els []selenium.WebElement) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &webElement{el: el})
	}
	return out
}

func lookupError(loc Locator, err error) error {
	var serr *selenium.Error
	if errors.As(err, &serr) && serr.Err == "no such element" {
		return notFound(loc)
	}
	return fmt.Errorf("find %s: %w", loc, err)
}

func seleniumLocator(loc Locator) (string, string) {
	switch loc.By {
	case ByID:
		return selenium.ByID, loc.Value
	case ByClass:
		return selenium.ByClassName, loc.Value
	case ByTag:
		return selenium.ByTagName, loc.Value
	default:
		return selenium.ByCSSSelector, loc.Value
	}
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("pick driver port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitListening(ctx context.Context, addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			return conn.Close()
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
