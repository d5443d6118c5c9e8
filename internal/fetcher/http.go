package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Page is a fetched document together with the URL it was finally served
// from after redirects.
type Page struct {
	Status int
	URL    *url.URL
	Body   []byte
}

// Client performs single-attempt requests sharing one cookie jar, so a
// login made through it carries over to later requests.
type Client struct {
	httpClient *http.Client
}

func New(timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
	}
}

func (c *Client) Get(ctx context.Context, target string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Page{}, err
	}
	return c.Do(req)
}

func (c *Client) PostForm(ctx context.Context, target string, form url.Values) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

func (c *Client) Do(req *http.Request) (Page, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, err
	}
	page := Page{Status: resp.StatusCode, URL: resp.Request.URL, Body: body}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return page, fmt.Errorf("%s %s: %s", req.Method, req.URL, resp.Status)
	}
	return page, nil
}
