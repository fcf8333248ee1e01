package qr

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestEncode(t *testing.T) {
	png, err := Encode("AAECAwQFBgcICQoLDA0ODxAREhM", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))

	_, err = Encode("", 128)
	assert.Error(t, err)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "codes")
	require.NoError(t, WriteFiles(dir, map[string]string{
		"G001_01":      "code-one",
		"Layla Hassan": "code-two",
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	data, err := os.ReadFile(filepath.Join(dir, "G001_01.png"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}
