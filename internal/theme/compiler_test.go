package theme

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphrapids/graphapi/internal/models"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

func TestCompileSingleVariable(t *testing.T) {
	css, err := Compile(map[string]models.ThemeVariable{
		"background-color": {ValueType: models.ValueColor, LightValue: "white", DarkValue: "black"},
	}, "")
	require.NoError(t, err)

	want := ":root {\n" +
		"  color-scheme: light dark;\n" +
		"  --light-background-color: white;\n" +
		"  --dark-background-color: black;\n" +
		"  --background-color: light-dark(var(--light-background-color), var(--dark-background-color));\n" +
		"}\n"
	require.Equal(t, want, css)
}

func TestCompileSortsKeysAndAppendsBody(t *testing.T) {
	css, err := Compile(map[string]models.ThemeVariable{
		"--node-stroke": {ValueType: models.ValueLength, LightValue: "1px", DarkValue: "2px"},
		"accent":        {ValueType: models.ValueColor, LightValue: "#0a84ff", DarkValue: "#409cff"},
	}, "svg { font-family: sans-serif; }\n")
	require.NoError(t, err)

	want := ":root {\n" +
		"  color-scheme: light dark;\n" +
		"  --light-accent: #0a84ff;\n" +
		"  --dark-accent: #409cff;\n" +
		"  --accent: light-dark(var(--light-accent), var(--dark-accent));\n" +
		"  --light-node-stroke: 1px;\n" +
		"  --dark-node-stroke: 2px;\n" +
		"  --node-stroke: light-dark(var(--light-node-stroke), var(--dark-node-stroke));\n" +
		"}\n" +
		"\n" +
		"svg { font-family: sans-serif; }\n"
	require.Equal(t, want, css)
}

func TestCompileWithoutVariablesReturnsBody(t *testing.T) {
	css, err := Compile(nil, "svg {}")
	require.NoError(t, err)
	require.Equal(t, "svg {}", css)
}

func TestCompileRejectsUnknownValueType(t *testing.T) {
	_, err := Compile(map[string]models.ThemeVariable{
		"accent": {ValueType: "gradient", LightValue: "a", DarkValue: "b"},
	}, "")
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeInvalidVariableType))
}

func TestCompileRejectsDottedKey(t *testing.T) {
	_, err := Compile(map[string]models.ThemeVariable{
		"font.size": {ValueType: models.ValueLength, LightValue: "12px", DarkValue: "12px"},
	}, "")
	require.True(t, appErr.IsCode(err, appErr.CodeMalformedContent))
}

func TestValidateVariableValues(t *testing.T) {
	ok := []models.ThemeVariable{
		{ValueType: models.ValueFloat, LightValue: "0.5", DarkValue: "1"},
		{ValueType: models.ValuePercent, LightValue: "50%", DarkValue: "12.5%"},
		{ValueType: models.ValueLength, LightValue: "0", DarkValue: "1.25rem"},
		{ValueType: models.ValueString, LightValue: "\"Inter\"", DarkValue: "\"Inter\""},
		{ValueType: models.ValueCustom, LightValue: "rgb(0 0 0 / 50%)", DarkValue: "none"},
	}
	for _, v := range ok {
		require.NoError(t, ValidateVariable("k", v), v)
	}

	bad := []models.ThemeVariable{
		{ValueType: models.ValueFloat, LightValue: "wide", DarkValue: "1"},
		{ValueType: models.ValuePercent, LightValue: "50", DarkValue: "50%"},
		{ValueType: models.ValueLength, LightValue: "10", DarkValue: "1px"},
		{ValueType: models.ValueColor, LightValue: "", DarkValue: "black"},
		{ValueType: models.ValueColor, LightValue: "red; }", DarkValue: "black"},
	}
	for _, v := range bad {
		err := ValidateVariable("k", v)
		require.Error(t, err, v)
		require.True(t, appErr.IsCode(err, appErr.CodeMalformedContent), v)
	}
}

func TestValidateBodyRejectsManagedDeclarations(t *testing.T) {
	vars := map[string]models.ThemeVariable{
		"accent": {ValueType: models.ValueColor, LightValue: "red", DarkValue: "blue"},
	}
	require.NoError(t, ValidateBody(vars, "svg { stroke: var(--accent); --other: 1; }"))

	err := ValidateBody(vars, ":root { --dark-accent : green; }")
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeMalformedContent))
}

func TestFromRevision(t *testing.T) {
	rev := &models.Revision{
		ID:       "default",
		Version:  2,
		Checksum: "abc",
		Content: models.Content{
			Entries: map[string]any{
				"accent": map[string]any{"valueType": "color", "lightValue": "red", "darkValue": "blue"},
			},
			Document: map[string]any{"cssBody": "svg {}"},
		},
	}
	doc, err := FromRevision(rev)
	require.NoError(t, err)
	require.Equal(t, "svg {}", doc.CSSBody)
	require.Contains(t, doc.RenderCSS, "--accent: light-dark(var(--light-accent), var(--dark-accent));")
	require.Equal(t, 2, doc.Version)
}
