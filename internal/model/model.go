package model

import "fmt"

// Message is one portal message. ID, Sender, Subject, URL and Date come
// from the listing row; Channel from the roster; Text from the detail page.
type Message struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Channel string `json:"channel"`
	Subject string `json:"subject"`
	URL     string `json:"url"`
	Date    string `json:"date"`
	Text    string `json:"text"`
}

func (m Message) String() string {
	return fmt.Sprintf(">>> %s\n%s\n%s\n\n%s", m.Sender, m.Date, m.Subject, m.Text)
}

// Values exposes the message for ${key} templates.
func (m Message) Values() map[string]string {
	return map[string]string{
		"id":      m.ID,
		"sender":  m.Sender,
		"channel": m.Channel,
		"subject": m.Subject,
		"link":    m.URL,
		"date":    m.Date,
		"text":    m.Text,
	}
}
