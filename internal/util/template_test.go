package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplateExpandsMarkers(t *testing.T) {
	out, err := RenderTemplate("score '{{.Offer}}' for query '{{.Query}}'", map[string]any{
		"Offer": "Кеды Alpha",
		"Query": "черные кеды",
	})
	require.NoError(t, err)
	assert.Equal(t, "score 'Кеды Alpha' for query 'черные кеды'", out)
}

func TestRenderTemplatePassesPlainTextThrough(t *testing.T) {
	out, err := RenderTemplate("no markers here", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers here", out)
}

func TestRenderTemplateJoinsSlices(t *testing.T) {
	out, err := RenderTemplate(`{{join .Brands ", "}}`, map[string]any{
		"Brands": []string{"Gucci", "Prada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Gucci, Prada", out)
}

func TestRenderTemplateRejectsMalformedMarkers(t *testing.T) {
	_, err := RenderTemplate("{{.Unclosed", nil)
	require.Error(t, err)
}
