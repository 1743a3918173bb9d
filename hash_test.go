package taproot

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash_MatchesSHA256(t *testing.T) {
	t.Parallel()
	content := []byte("import os\n")
	want := fmt.Sprintf("%x", sha256.Sum256(content))
	assert.Equal(t, want, ContentHash(content))
}

func TestContentHash_EmptyFile(t *testing.T) {
	t.Parallel()
	// SHA-256 of zero bytes; empty __init__.py files are everywhere.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		ContentHash(nil))
	assert.Equal(t, ContentHash(nil), ContentHash([]byte{}))
}

func TestContentHash_SensitiveToEveryByte(t *testing.T) {
	t.Parallel()
	assert.NotEqual(t, ContentHash([]byte("x = 1")), ContentHash([]byte("x = 2")))
	assert.NotEqual(t, ContentHash([]byte("x = 1")), ContentHash([]byte("x = 1\n")))
}

func TestFingerprint_OrderInsensitive(t *testing.T) {
	t.Parallel()
	a := Fingerprint("/src", []string{"app", "tools"}, []string{"app", "tools"})
	b := Fingerprint("/src", []string{"tools", "app"}, []string{"tools", "app"})
	assert.Equal(t, a, b)
}

func TestFingerprint_NilEqualsEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		Fingerprint("/src", nil, nil),
		Fingerprint("/src", []string{}, []string{}))
}

func TestFingerprint_SensitiveToEachInput(t *testing.T) {
	t.Parallel()
	base := Fingerprint("/src", []string{"app"}, []string{"app"})
	assert.NotEqual(t, base, Fingerprint("/other", []string{"app"}, []string{"app"}))
	assert.NotEqual(t, base, Fingerprint("/src", []string{"app", "tools"}, []string{"app"}))
	assert.NotEqual(t, base, Fingerprint("/src", []string{"app"}, []string{"tools"}))
}

func TestFingerprint_IncludesAndPrefixesNotInterchangeable(t *testing.T) {
	t.Parallel()
	// The two lists are framed separately, so moving a value between them
	// changes the digest.
	a := Fingerprint("/src", []string{"app"}, nil)
	b := Fingerprint("/src", nil, []string{"app"})
	assert.NotEqual(t, a, b)
}
