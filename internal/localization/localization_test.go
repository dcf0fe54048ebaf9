package localization_test

import (
	"flagwatch/backend/internal/localization"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalog(t *testing.T) {
	l, err := localization.NewLocalizer()
	require.NoError(t, err)

	assert.Equal(t, "Added user <@42> to the watchlist.", l.T("wl_added", "42"))
	assert.Contains(t, l.T("info"), ".mutualcases")
	assert.Equal(t, "missing_key", l.T("missing_key"))
}

func TestGetString_FallsBackToDefaultLanguage(t *testing.T) {
	fsys := fstest.MapFS{
		"en.json": {Data: []byte(`{"hello": "Hello", "bye": "Bye"}`)},
		"uk.json": {Data: []byte(`{"hello": "Привіт"}`)},
	}
	l, err := localization.NewLocalizerFS(fsys)
	require.NoError(t, err)

	assert.Equal(t, "Привіт", l.GetString("uk", "hello"))
	assert.Equal(t, "Bye", l.GetString("uk", "bye"))
	assert.Equal(t, "nope", l.GetString("uk", "nope"))
}

func TestNewLocalizerFS_RejectsBadJSON(t *testing.T) {
	_, err := localization.NewLocalizerFS(fstest.MapFS{"en.json": {Data: []byte(`{`)}})
	assert.Error(t, err)
}

func TestNewLocalizerFS_RequiresDefaultCatalog(t *testing.T) {
	_, err := localization.NewLocalizerFS(fstest.MapFS{"uk.json": {Data: []byte(`{}`)}})
	assert.Error(t, err)
}
