// Package portaltest serves a minimal copy of the school portal: a landing
// page with the login iframe, the login form, the home page with the
// messages icon, the inbox listing and one detail page per message.
package portaltest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

const (
	Login    = "parent"
	Password = "secret"
	session  = "portal-session"
)

// Row is one inbox listing row.
type Row struct {
	ID      string
	Sender  string
	Subject string
	Date    string
	Body    string
	Unread  bool
	// NoInput and NoLink produce malformed rows.
	NoInput bool
	NoLink  bool
}

type Server struct {
	*httptest.Server

	mu     sync.Mutex
	rows   []Row
	visits map[string]int
}

func New(rows ...Row) *Server {
	s := &Server{rows: rows, visits: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/rodzina/home", s.landing)
	mux.HandleFunc("/login", s.login)
	mux.HandleFunc("/home", s.authed(s.home))
	mux.HandleFunc("/messages", s.authed(s.inbox))
	mux.HandleFunc("/messages/", s.authed(s.detail))
	s.Server = httptest.NewServer(mux)
	return s
}

// LoginURL is the landing page the login flow starts from.
func (s *Server) LoginURL() string {
	return s.URL + "/rodzina/home"
}

// Visits reports how often path was served.
func (s *Server) Visits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visits[path]
}

func (s *Server) track(r *http.Request) {
	s.mu.Lock()
	s.visits[r.URL.Path]++
	s.mu.Unlock()
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.track(r)
		if c, err := r.Cookie("sid"); err != nil || c.Value != session {
			http.Redirect(w, r, "/rodzina/home", http.StatusFound)
			return
		}
		next(w, r)
	}
}

func (s *Server) landing(w http.ResponseWriter, r *http.Request) {
	s.track(r)
	page(w, `<a class="btn-synergia-top">Zaloguj</a>
<div class="dropdown">
  <a class="dropdown-item--synergia">Rodzic</a>
  <a class="dropdown-item--synergia">Uczen</a>
</div>
<iframe id="caLoginIframe" src="/login"></iframe>`)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.track(r)
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil && r.PostForm.Get("login") == Login && r.PostForm.Get("pass") == Password {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: session, Path: "/"})
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
	}
	page(w, `<form method="post" action="/login">
  <input id="Login" name="login" type="text">
  <input id="Pass" name="pass" type="password">
  <button id="LoginBtn" type="submit">Zaloguj</button>
</form>`)
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	page(w, `<a id="icon-wiadomosci" href="/messages">Wiadomosci</a>`)
}

func (s *Server) inbox(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	rows := append([]Row(nil), s.rows...)
	s.mu.Unlock()

	var b strings.Builder
	b.WriteString(`<a id="icon-wiadomosci" href="/messages">Wiadomosci</a>`)
	b.WriteString(`<table class="decorated"><thead><tr><td></td><td></td><td>Nadawca</td><td>Temat</td><td>Data</td></tr></thead><tbody>`)
	for _, row := range rows {
		b.WriteString("<tr><td>")
		if !row.NoInput {
			fmt.Fprintf(&b, `<input type="checkbox" name="ids[]" value="%s">`, html.EscapeString(row.ID))
		}
		b.WriteString("</td><td></td>")
		if row.Unread {
			fmt.Fprintf(&b, `<td style="font-weight: bold;">%s</td>`, html.EscapeString(row.Sender))
		} else {
			fmt.Fprintf(&b, `<td>%s</td>`, html.EscapeString(row.Sender))
		}
		if row.NoLink {
			fmt.Fprintf(&b, `<td>%s</td>`, html.EscapeString(row.Subject))
		} else {
			fmt.Fprintf(&b, `<td><a href="/messages/%s">%s</a></td>`, html.EscapeString(row.ID), html.EscapeString(row.Subject))
		}
		fmt.Fprintf(&b, "<td>%s</td></tr>", html.EscapeString(row.Date))
	}
	b.WriteString("</tbody></table>")
	page(w, b.String())
}

func (s *Server) detail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/messages/")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id {
			page(w, fmt.Sprintf(`<a id="icon-wiadomosci" href="/messages">Wiadomosci</a><div class="container-message-content">%s</div>`, html.EscapeString(row.Body)))
			return
		}
	}
	http.NotFound(w, r)
}

func page(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html><html><body>%s</body></html>", body)
}
