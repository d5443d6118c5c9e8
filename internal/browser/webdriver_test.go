package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tebeka/selenium"
)

func TestSeleniumLocator(t *testing.T) {
	tests := []struct {
		loc   Locator
		by    string
		value string
	}{
		{ID("Login"), selenium.ByID, "Login"},
		{Class("btn-synergia-top"), selenium.ByClassName, "btn-synergia-top"},
		{Tag("td"), selenium.ByTagName, "td"},
		{CSS("table.decorated > tbody"), selenium.ByCSSSelector, "table.decorated > tbody"},
	}
	for _, tt := range tests {
		t.Run(tt.loc.String(), func(t *testing.T) {
			by, value := seleniumLocator(tt.loc)
			assert.Equal(t, tt.by, by)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestLookupError(t *testing.T) {
	err := lookupError(ID("x"), &selenium.Error{Err: "no such element", Message: "gone"})
	assert.ErrorIs(t, err, ErrElementNotFound)

	err = lookupError(ID("x"), &selenium.Error{Err: "invalid session id"})
	assert.NotErrorIs(t, err, ErrElementNotFound)
}

func TestCSSSelector(t *testing.T) {
	assert.Equal(t, `[id="Login"]`, cssSelector(ID("Login")))
	assert.Equal(t, ".container-message-content", cssSelector(Class("container-message-content")))
	assert.Equal(t, "td", cssSelector(Tag("td")))
}
