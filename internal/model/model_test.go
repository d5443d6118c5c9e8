package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageString(t *testing.T) {
	m := Message{
		ID:      "42",
		Sender:  "Mrs. Smith",
		Channel: "math",
		Subject: "Exam",
		Date:    "2024-03-01 10:00:00",
		Text:    "The exam is on Monday.",
	}
	assert.Equal(t, ">>> Mrs. Smith\n2024-03-01 10:00:00\nExam\n\nThe exam is on Monday.", m.String())
}

func TestMessageValues(t *testing.T) {
	m := Message{ID: "1", Sender: "Mr. Jones", URL: "https://portal/1"}
	v := m.Values()
	assert.Equal(t, "1", v["id"])
	assert.Equal(t, "Mr. Jones", v["sender"])
	assert.Equal(t, "https://portal/1", v["link"])
	assert.Equal(t, "", v["channel"])
}
