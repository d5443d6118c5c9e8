package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"school-inbox/internal/fetcher"
)

var errClosed = errors.New("session closed")

// staticSession drives a portal over plain HTTP without running scripts.
// Links navigate, submit controls post their form and frames load their
// src as the current document.
type staticSession struct {
	client *fetcher.Client
	doc    *goquery.Document
	url    *url.URL
	closed bool
}

func openStatic(_ context.Context, opts Options) (Session, error) {
	return &staticSession{client: fetcher.New(opts.WaitTimeout)}, nil
}

func (s *staticSession) Navigate(ctx context.Context, target string) error {
	u, err := s.resolve(target)
	if err != nil {
		return err
	}
	page, err := s.client.Get(ctx, u.String())
	if err != nil {
		return err
	}
	return s.load(page)
}

func (s *staticSession) load(page fetcher.Page) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", page.URL, err)
	}
	s.doc = doc
	s.url = page.URL
	return nil
}

func (s *staticSession) resolve(ref string) (*url.URL, error) {
	if s.closed {
		return nil, errClosed
	}
	if s.url == nil {
		return url.Parse(ref)
	}
	return s.url.Parse(ref)
}

// Static pages never change after load, so waiting is a single lookup.
func (s *staticSession) WaitForElement(ctx context.Context, loc Locator) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.FindElement(loc)
}

func (s *staticSession) FindElement(loc Locator) (Element, error) {
	if s.doc == nil {
		return nil, notFound(loc)
	}
	return s.first(s.doc.Selection, loc)
}

func (s *staticSession) FindElements(loc Locator) ([]Element, error) {
	if s.doc == nil {
		return []Element{}, nil
	}
	return s.all(s.doc.Selection, loc), nil
}

func (s *staticSession) SwitchFrame(ctx context.Context, loc Locator) error {
	frame, err := s.WaitForElement(ctx, loc)
	if err != nil {
		return err
	}
	src, _ := frame.Attribute("src")
	if src == "" {
		return fmt.Errorf("frame %s has no src", loc)
	}
	return s.Navigate(ctx, src)
}

func (s *staticSession) Close() error {
	s.closed = true
	s.doc = nil
	return nil
}

func (s *staticSession) first(root *goquery.Selection, loc Locator) (Element, error) {
	sel := root.Find(cssSelector(loc))
	if sel.Length() == 0 {
		return nil, notFound(loc)
	}
	return &staticElement{s: s, sel: sel.First(), base: s.url}, nil
}

func (s *staticSession) all(root *goquery.Selection, loc Locator) []Element {
	sel := root.Find(cssSelector(loc))
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, el *goquery.Selection) {
		out = append(out, &staticElement{s: s, sel: el, base: s.url})
	})
	return out
}

func (s *staticSession) submit(ctx context.Context, form, control *goquery.Selection) error {
	action, _ := form.Attr("action")
	u, err := s.resolve(action)
	if err != nil {
		return err
	}
	values := formValues(form, control)
	method, _ := form.Attr("method")
	var page fetcher.Page
	if strings.EqualFold(method, "post") {
		page, err = s.client.PostForm(ctx, u.String(), values)
	} else {
		u.RawQuery = values.Encode()
		page, err = s.client.Get(ctx, u.String())
	}
	if err != nil {
		return err
	}
	return s.load(page)
}

func formValues(form, control *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input, textarea, select").Each(func(_ int, field *goquery.Selection) {
		name, ok := field.Attr("name")
		if !ok || name == "" {
			return
		}
		switch goquery.NodeName(field) {
		case "textarea":
			values.Add(name, field.Text())
			return
		case "select":
			opt := field.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = field.Find("option").First()
			}
			v, ok := opt.Attr("value")
			if !ok {
				v = strings.TrimSpace(opt.Text())
			}
			values.Add(name, v)
			return
		}
		typ := strings.ToLower(field.AttrOr("type", "text"))
		switch typ {
		case "submit", "button", "image", "reset":
			return
		case "checkbox", "radio":
			if _, checked := field.Attr("checked"); !checked {
				return
			}
		}
		values.Add(name, field.AttrOr("value", ""))
	})
	if name, ok := control.Attr("name"); ok && name != "" {
		values.Add(name, control.AttrOr("value", ""))
	}
	return values
}

type staticElement struct {
	s    *staticSession
	sel  *goquery.Selection
	base *url.URL
}

func (e *staticElement) Text() (string, error) {
	if e.sel.Length() == 0 {
		return "", nil
	}
	root := e.sel.Clone().Get(0)
	flatten(root)
	root.Data, root.DataAtom, root.Attr = "div", atom.Div, nil
	text, err := html2text.FromHTMLNode(root, html2text.Options{OmitLinks: true})
	if err != nil {
		return strings.TrimSpace(e.sel.Text()), nil
	}
	return text, nil
}

// Rendered text matches what a browser reports: inline markup contributes
// only its text and block elements break lines. After flatten, html2text
// sees only layout elements it renders without decoration.
var (
	layoutElements = map[atom.Atom]bool{
		atom.P: true, atom.Div: true, atom.Br: true, atom.Pre: true,
		atom.Table: true, atom.Thead: true, atom.Tbody: true, atom.Tfoot: true, atom.Td: true, atom.Th: true,
	}
	blockElements = map[atom.Atom]bool{
		atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
		atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
		atom.Tr: true, atom.Blockquote: true, atom.Hr: true, atom.Form: true, atom.Fieldset: true,
		atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true, atom.Nav: true,
		atom.Aside: true, atom.Main: true, atom.Address: true, atom.Figure: true, atom.Figcaption: true,
	}
	hiddenElements = map[atom.Atom]bool{
		atom.Script: true, atom.Style: true, atom.Head: true, atom.Title: true, atom.Noscript: true, atom.Template: true,
	}
)

func flatten(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type != html.ElementNode:
		case hiddenElements[c.DataAtom]:
			n.RemoveChild(c)
		default:
			flatten(c)
			if blockElements[c.DataAtom] {
				c.Data, c.DataAtom, c.Attr = "div", atom.Div, nil
			} else if !layoutElements[c.DataAtom] {
				unwrap(c)
			}
		}
		c = next
	}
	// Adjacent text nodes must be one node, html2text pads a space between nodes.
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		for c.Type == html.TextNode && c.NextSibling != nil && c.NextSibling.Type == html.TextNode {
			next := c.NextSibling
			c.Data += next.Data
			n.RemoveChild(next)
		}
	}
}

// unwrap replaces n with its children.
func unwrap(n *html.Node) {
	parent := n.Parent
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
}

// Attribute resolves href and src against the URL of the page the element
// came from, the way a browser reports those properties.
func (e *staticElement) Attribute(name string) (string, error) {
	v, ok := e.sel.Attr(name)
	if !ok {
		return "", nil
	}
	if name == "href" || name == "src" {
		var u *url.URL
		var err error
		if e.base != nil {
			u, err = e.base.Parse(v)
		} else {
			u, err = url.Parse(v)
		}
		if err != nil {
			return "", err
		}
		return u.String(), nil
	}
	return v, nil
}

func (e *staticElement) Click(ctx context.Context) error {
	switch goquery.NodeName(e.sel) {
	case "a":
		if href, ok := e.sel.Attr("href"); ok {
			return e.s.Navigate(ctx, href)
		}
	case "button":
		typ := strings.ToLower(e.sel.AttrOr("type", "submit"))
		if typ == "submit" {
			return e.submitEnclosing(ctx)
		}
	case "input":
		typ := strings.ToLower(e.sel.AttrOr("type", "text"))
		if typ == "submit" || typ == "image" {
			return e.submitEnclosing(ctx)
		}
	}
	// Without scripts anything else has no effect.
	return nil
}

func (e *staticElement) submitEnclosing(ctx context.Context) error {
	form := e.sel.Closest("form")
	if form.Length() == 0 {
		return nil
	}
	return e.s.submit(ctx, form, e.sel)
}

func (e *staticElement) SendKeys(keys string) error {
	e.sel.SetAttr("value", e.sel.AttrOr("value", "")+keys)
	return nil
}

func (e *staticElement) FindElement(loc Locator) (Element, error) {
	return e.s.first(e.sel, loc)
}

func (e *staticElement) FindElements(loc Locator) ([]Element, error) {
	return e.s.all(e.sel, loc), nil
}

func cssSelector(loc Locator) string {
	switch loc.By {
	case ByID:
		return fmt.Sprintf("[id=%q]", loc.Value)
	case ByClass:
		return "." + loc.Value
	default:
		return loc.Value
	}
}
