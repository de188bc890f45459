package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeJSONBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"string", `"hello"`, `"hello"`},
		{"empty string", `""`, `""`},
		{"int", `42`, `42`},
		{"negative int", `-100`, `-100`},
		{"float kept verbatim", `2.50`, `2.50`},
		{"null", `null`, `null`},
		{"bool true", `true`, `true`},
		{"bool false", `false`, `false`},
		{"empty array", `[]`, `[]`},
		{"empty object", `{}`, `{}`},
		{"whitespace dropped", ` { "a" : [ 1 , 2 ] } `, `{"a":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CanonicalizeJSON([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestCanonicalizeJSONSortedKeys(t *testing.T) {
	result, err := CanonicalizeJSON([]byte(`{"zebra":1,"alpha":{"b":1,"a":2},"beta":3}`))
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":3,"zebra":1}`, string(result))
}

func TestCanonicalizeJSONNoHTMLEscape(t *testing.T) {
	result, err := CanonicalizeJSON([]byte(`{"charge code":"<GEN & co>"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"charge code":"<GEN & co>"}`, string(result))
}

func TestCanonicalizeJSONNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed "é".
	decomposed := "{\"name\":\"Cafe\u0301\"}"
	precomposed := "{\"name\":\"Caf\u00e9\"}"

	a, err := CanonicalizeJSON([]byte(decomposed))
	require.NoError(t, err)
	b, err := CanonicalizeJSON([]byte(precomposed))
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestCanonicalizeJSONLineSeparators(t *testing.T) {
	result, err := CanonicalizeJSON([]byte("\"a\u2028b\""))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))

	// An escaped backslash followed by the text u2028 must stay as is.
	result, err = CanonicalizeJSON([]byte(`"\\u2028"`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestCanonicalizeJSONUTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes to the surrogate 0xD83D in UTF-16, which sorts before
	// U+FF21 (0xFF21), although its UTF-8 bytes sort after.
	input := "{\"\uFF21\":1,\"\U0001F600\":2}"
	result, err := CanonicalizeJSON([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uFF21\":1}", string(result))
}

func TestCanonicalizeJSONRejectsGarbage(t *testing.T) {
	_, err := CanonicalizeJSON([]byte(`{"a":`))
	require.Error(t, err)

	_, err = CanonicalizeJSON([]byte(`{} {}`))
	require.Error(t, err)
}

func TestMarshalCanonicalRejectsFloat(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json.Number")
}
