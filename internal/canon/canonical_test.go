package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeys(t *testing.T) {
	got, err := Marshal(map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": true, "y": false}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":false,"z":true}}`, string(got))
}

func TestMarshal_StructTagsApply(t *testing.T) {
	type point struct {
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		Note string  `json:"note,omitempty"`
	}
	got, err := Marshal(point{X: 1.5, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"x":1.5,"y":2}`, string(got))
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	got, err := Marshal(map[string]string{"k": "<a & b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"<a & b>"}`, string(got))
}

func TestMarshal_LineSeparatorsLiteral(t *testing.T) {
	got, err := Marshal("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))
}

func TestMarshal_EscapedBackslashKept(t *testing.T) {
	got, err := Marshal(`\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(got))
}

func TestMarshal_NFCNormalization(t *testing.T) {
	decomposed := "e\u0301"
	composed := "\u00e9"

	a, err := Marshal(decomposed)
	require.NoError(t, err)
	b, err := Marshal(composed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestCanonicalize_IntegralNumbers(t *testing.T) {
	got, err := Canonicalize([]byte(`{"a": 1.0, "b": 1e3, "c": 0.25}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":1000,"c":0.25}`, string(got))
}

func TestCanonicalize_InvalidJSON(t *testing.T) {
	_, err := Canonicalize([]byte(`{"a":`))
	require.Error(t, err)
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 but after it in UTF-16,
	// since the emoji encodes as a surrogate pair starting at 0xD83D.
	m := map[string]int{"\uff61": 1, "\U0001F600": 2, "a": 3}
	assert.Equal(t, []string{"a", "\U0001F600", "\uff61"}, SortedKeys(m))
}

func TestFingerprint_Deterministic(t *testing.T) {
	a, err := Fingerprint(DomainProject, map[string]any{"id": "p1", "name": "x"})
	require.NoError(t, err)
	b, err := Fingerprint(DomainProject, map[string]any{"name": "x", "id": "p1"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_DomainSeparation(t *testing.T) {
	v := map[string]any{"id": "p1"}
	project, err := Fingerprint(DomainProject, v)
	require.NoError(t, err)
	trace, err := Fingerprint(DomainTrace, v)
	require.NoError(t, err)
	assert.NotEqual(t, project, trace)
}
