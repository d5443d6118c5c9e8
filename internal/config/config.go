package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Driver    DriverConfig  `yaml:"driver"`
	Portal    PortalConfig  `yaml:"portal"`
	Roster    Roster        `yaml:"roster"`
	Relevance string        `yaml:"relevance"`
	Push      PushConfig    `yaml:"push"`
	Logging   LoggingConfig `yaml:"logging"`

	relevance *regexp.Regexp
}

type DriverConfig struct {
	Name               string `yaml:"name"`
	Path               string `yaml:"path"`
	Headless           bool   `yaml:"headless"`
	WaitTimeoutSeconds int    `yaml:"wait_timeout_seconds"`
	WindowWidth        int    `yaml:"window_width"`
	WindowHeight       int    `yaml:"window_height"`
}

type PortalConfig struct {
	LoginURL  string          `yaml:"login_url"`
	Login     string          `yaml:"login"`
	Password  string          `yaml:"password"`
	Selectors SelectorsConfig `yaml:"selectors"`
}

// SelectorsConfig names the page elements the login flow and the
// extractor rely on. Empty values fall back to the Librus layout.
type SelectorsConfig struct {
	LoginButton    string `yaml:"login_button"`
	LoginMenuItem  string `yaml:"login_menu_item"`
	LoginMenuIndex int    `yaml:"login_menu_index"`
	LoginFrame     string `yaml:"login_frame"`
	LoginField     string `yaml:"login_field"`
	PasswordField  string `yaml:"password_field"`
	SubmitButton   string `yaml:"submit_button"`
	InboxIcon      string `yaml:"inbox_icon"`
	Listing        string `yaml:"listing"`
	MessageBody    string `yaml:"message_body"`
}

type PushConfig struct {
	MaxPushPerMinute int            `yaml:"max_push_per_minute"`
	Dingding         DingdingConfig `yaml:"dingding"`
	Redis            RedisConfig    `yaml:"redis"`
}

type DingdingConfig struct {
	Webhook   string `yaml:"webhook"`
	Secret    string `yaml:"secret"`
	MsgType   string `yaml:"msg_type"`
	Title     string `yaml:"title"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Template  string `yaml:"template"`
}

type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

const (
	DriverChrome  = "chrome"
	DriverGecko   = "gecko"
	DriverPhantom = "phantom"
	DriverStatic  = "static"
)

var drivers = []string{DriverChrome, DriverGecko, DriverPhantom, DriverStatic}

func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse([]byte(os.ExpandEnv(string(raw))))
}

// Parse decodes an already expanded YAML document, applies defaults and
// validates the result.
func Parse(raw []byte) (Config, error) {
	// Zero is a valid menu index, so its default is set before decoding.
	cfg := Config{Portal: PortalConfig{Selectors: SelectorsConfig{LoginMenuIndex: 1}}}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Driver.WaitTimeoutSeconds <= 0 {
		c.Driver.WaitTimeoutSeconds = 10
	}
	if c.Driver.WindowWidth <= 0 {
		c.Driver.WindowWidth = 1920
	}
	if c.Driver.WindowHeight <= 0 {
		c.Driver.WindowHeight = 1080
	}
	if c.Portal.LoginURL == "" {
		c.Portal.LoginURL = "https://portal.librus.pl/rodzina/home"
	}
	s := &c.Portal.Selectors
	setDefault(&s.LoginButton, "btn-synergia-top")
	setDefault(&s.LoginMenuItem, "dropdown-item--synergia")
	setDefault(&s.LoginFrame, "caLoginIframe")
	setDefault(&s.LoginField, "Login")
	setDefault(&s.PasswordField, "Pass")
	setDefault(&s.SubmitButton, "LoginBtn")
	setDefault(&s.InboxIcon, "icon-wiadomosci")
	setDefault(&s.Listing, "table.decorated > tbody")
	setDefault(&s.MessageBody, "container-message-content")
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func setDefault(v *string, def string) {
	if strings.TrimSpace(*v) == "" {
		*v = def
	}
}

// Validate checks the configuration and compiles the relevance pattern.
// Every failure is reported as a *Error.
func (c *Config) Validate() error {
	if !knownDriver(c.Driver.Name) {
		return &Error{Field: "driver.name", Reason: fmt.Sprintf("%q is incorrect, it must be one of: %s", c.Driver.Name, strings.Join(drivers, ", "))}
	}
	if c.Driver.Name != DriverStatic && strings.TrimSpace(c.Driver.Path) == "" {
		return &Error{Field: "driver.path", Reason: "required"}
	}
	if strings.TrimSpace(c.Portal.Login) == "" {
		return &Error{Field: "portal.login", Reason: "required"}
	}
	if c.Portal.Password == "" {
		return &Error{Field: "portal.password", Reason: "required"}
	}
	if c.Portal.Selectors.LoginMenuIndex < 0 {
		return &Error{Field: "portal.selectors.login_menu_index", Reason: "must not be negative"}
	}
	if len(c.Roster) == 0 {
		return &Error{Field: "roster", Reason: "at least one entry required"}
	}
	for i, e := range c.Roster {
		if e.Key == "" {
			return &Error{Field: fmt.Sprintf("roster[%d]", i), Reason: "empty sender key"}
		}
		if e.Channel == "" {
			return &Error{Field: fmt.Sprintf("roster[%d]", i), Reason: fmt.Sprintf("empty channel for %q", e.Key)}
		}
	}
	re, err := regexp.Compile(c.Relevance)
	if err != nil {
		return &Error{Field: "relevance", Reason: err.Error()}
	}
	c.relevance = re
	return nil
}

// RelevancePattern returns the compiled relevance regex. It is nil until
// Validate has succeeded.
func (c Config) RelevancePattern() *regexp.Regexp {
	return c.relevance
}

func knownDriver(name string) bool {
	for _, d := range drivers {
		if d == name {
			return true
		}
	}
	return false
}

// Error is a configuration failure. It is fatal and never recovered.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}
