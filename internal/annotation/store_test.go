package annotation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"paper.pdf":          "paper.pdf",
		"my paper (v2).pdf":  "my_paper__v2_.pdf",
		"../../etc/passwd":   ".._.._etc_passwd",
		"Cafe\u0301.pdf":     "Café.pdf",
		"résumé_final-1.pdf": "résumé_final-1.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeName(in), in)
	}
}

func TestGet_MissingIsEmptyObject(t *testing.T) {
	s := setupStore(t)
	got, err := s.Get("nothing.pdf")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got))
}

func TestSaveGetRoundTrip(t *testing.T) {
	s := setupStore(t)
	payload := json.RawMessage(`{"pages":{"1":{"objects":[{"type":"rect","left":10}]}}}`)

	require.NoError(t, s.Save("paper.pdf", payload))

	got, err := s.Get("paper.pdf")
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got))
}

func TestSave_SanitizedNamesShareKey(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Save("a b.pdf", json.RawMessage(`{"v":1}`)))

	got, err := s.Get("a_b.pdf")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))
}

func TestSave_RejectsNonObject(t *testing.T) {
	s := setupStore(t)
	for _, bad := range []string{`[]`, `"text"`, `null`, `{broken`} {
		err := s.Save("x.pdf", json.RawMessage(bad))
		assert.ErrorIs(t, err, ErrInvalidPayload, bad)
	}
}

func TestDelete(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Save("paper.pdf", json.RawMessage(`{"v":1}`)))

	res, err := s.Delete("paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)

	res, err = s.Delete("paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, res.Status)

	got, err := s.Get("paper.pdf")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got))
}
