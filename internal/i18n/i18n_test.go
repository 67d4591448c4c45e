package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tr, err := New("nl")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"nl", "en"}, tr.Languages())

	_, err = New("not a language!")
	assert.Error(t, err)
}

func TestLocalizer(t *testing.T) {
	t.Parallel()

	tr, err := New("nl")
	require.NoError(t, err)

	tests := []struct {
		name           string
		acceptLanguage string
		want           string
	}{
		{name: "default", acceptLanguage: "", want: "Faalkaart"},
		{name: "english", acceptLanguage: "en-US,en;q=0.9", want: "Failmap"},
		{name: "dutch preferred", acceptLanguage: "nl-NL,en;q=0.5", want: "Faalkaart"},
		{name: "unsupported", acceptLanguage: "fr-FR", want: "Faalkaart"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tr.Localizer(tt.acceptLanguage).T("index.title"))
		})
	}
}

func TestLocalizer_Templates(t *testing.T) {
	t.Parallel()

	tr, err := New("nl")
	require.NoError(t, err)
	en := tr.Localizer("en")

	assert.Equal(t, "Welcome, admin", en.Tf("admin.welcome", map[string]any{"Username": "admin"}))
	assert.Equal(t, "1 task queued.", en.Plural("admin.action.queued", 1))
	assert.Equal(t, "3 tasks queued.", en.Plural("admin.action.queued", 3))
	assert.Equal(t, "3 taken ingepland.", tr.Localizer("nl").Plural("admin.action.queued", 3))
	assert.Equal(t, "no.such.message", en.T("no.such.message"))
	assert.Equal(t, "en", en.Language("index.title"))
}
