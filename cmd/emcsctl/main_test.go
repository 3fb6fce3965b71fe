package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emcs/internal/notary"
)

func TestArcCheck(t *testing.T) {
	assert.NoError(t, run("arc", []string{"check", "24EU12345678901234564"}))
	assert.Error(t, run("arc", []string{"check", "24EU12345678901234565"}))
	assert.Error(t, run("arc", []string{"check"}))
}

func TestArcNew(t *testing.T) {
	assert.NoError(t, run("arc", []string{"new", "-country", "fr", "-n", "2"}))
	assert.Error(t, run("arc", []string{"new", "-country", "FRA"}))
}

func TestHashAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"b":2,"a":1}`), 0o600))

	want, err := notary.Hash(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)

	assert.NoError(t, run("hash", []string{path}))
	assert.NoError(t, run("verify", []string{path, want}))
	assert.Error(t, run("verify", []string{path, "0xdeadbeef"}))
	assert.Error(t, run("hash", []string{"-digest", "md5", path}))
}

func TestToken(t *testing.T) {
	addr := "0x" + "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	assert.NoError(t, run("token", []string{"-key", "k", addr}))
	assert.Error(t, run("token", []string{"-key", "k", "nope"}))
}

func TestUnknownCommand(t *testing.T) {
	assert.Error(t, run("launch", nil))
}
