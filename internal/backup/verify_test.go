package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func usersJSON(n int) string {
	records := make([]string, n)
	for i := range records {
		records[i] = fmt.Sprintf(`{"localId":"u%d","email":"u%d@example.com","providerUserInfo":[]}`, i, i)
	}
	return `{"users":[` + strings.Join(records, ",") + `]}`
}

func TestVerifyIdentityArtifact_Counts(t *testing.T) {
	for _, n := range []int{0, 1, 3, 250} {
		t.Run(fmt.Sprintf("%d users", n), func(t *testing.T) {
			content := usersJSON(n)
			path := writeArtifact(t, content)

			m, err := VerifyIdentityArtifact(path)
			require.NoError(t, err)
			assert.Equal(t, int64(n), m.Count)
			assert.Equal(t, int64(len(content)), m.Bytes)
		})
	}
}

func TestVerifyIdentityArtifact_ExtraFields(t *testing.T) {
	path := writeArtifact(t, `{"kind":"export","users":[{"localId":"a"},{"localId":"b"}],"meta":{"x":[1,2]}}`)

	m, err := VerifyIdentityArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Count)
}

func TestVerifyIdentityArtifact_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty file", content: ""},
		{name: "not json", content: "this is not json"},
		{name: "truncated", content: `{"users":[{"localId":"a"},{"local`},
		{name: "missing closing brace", content: `{"users":[]`},
		{name: "missing users", content: `{"accounts":[]}`},
		{name: "users not an array", content: `{"users":{"localId":"a"}}`},
		{name: "top level array", content: `[{"localId":"a"}]`},
		{name: "trailing data", content: `{"users":[]} {"users":[]}`},
		{name: "scalar records", content: `{"users":[null,1,"x"]}`},
		{name: "nested arrays", content: `{"users":[[],[]]}`},
		{name: "record without localId", content: `{"users":[{"localId":"a"},{"email":"b@example.com"}]}`},
		{name: "empty localId", content: `{"users":[{"localId":""}]}`},
		{name: "localId not a string", content: `{"users":[{"localId":7}]}`},
		{name: "repeated users key", content: `{"users":[{"localId":"a"},{"localId":"b"}],"users":[{"localId":"c"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArtifact(t, tt.content)

			_, err := VerifyIdentityArtifact(path)
			require.Error(t, err)

			var pf *ParseFailure
			require.True(t, errors.As(err, &pf), "expected ParseFailure, got %T", err)
			assert.Equal(t, path, pf.Path)
			assert.NotNil(t, pf.Unwrap())
		})
	}
}

func TestVerifyIdentityArtifact_MissingFile(t *testing.T) {
	_, err := VerifyIdentityArtifact(filepath.Join(t.TempDir(), "absent.json"))

	var pf *ParseFailure
	require.True(t, errors.As(err, &pf))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
