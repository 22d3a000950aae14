package keygen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerateRSAKeyPair(t *testing.T) {
	t.Parallel()
	kp, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(kp.PublicKey), "ssh-rsa "))
	assert.True(t, strings.HasPrefix(kp.Fingerprint, "SHA256:"))

	_, err = ssh.ParsePrivateKey(kp.PrivateKey)
	assert.NoError(t, err)
}

func TestGenerateRSAKeyPair_InvalidBits(t *testing.T) {
	t.Parallel()
	_, err := GenerateRSAKeyPair(0)
	assert.Error(t, err)
}

func TestLoadKeyPair_RoundTrip(t *testing.T) {
	t.Parallel()
	generated, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_rsa")
	require.NoError(t, os.WriteFile(path, generated.PrivateKey, 0o600))

	loaded, err := LoadKeyPair(path)
	require.NoError(t, err)
	assert.Equal(t, generated.PublicKey, loaded.PublicKey)
	assert.Equal(t, generated.Fingerprint, loaded.Fingerprint)
}

func TestLoadKeyPair_Unreadable(t *testing.T) {
	t.Parallel()
	_, err := LoadKeyPair(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read private key")
}

func TestParseKeyPair_Garbage(t *testing.T) {
	t.Parallel()
	_, err := ParseKeyPair([]byte("not a key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse private key")
}
