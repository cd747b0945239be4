package keys

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy unavailable")
}

func TestGenerate(t *testing.T) {
	kp, err := NewGenerator().Generate()
	require.NoError(t, err)

	assert.Len(t, kp.PublicKey, EncodedKeyLength)
	assert.Len(t, kp.PrivateKey, EncodedKeyLength)
	assert.NoError(t, ValidatePublicKey(kp.PublicKey))

	derived, err := PublicKeyFor(kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, derived)
}

func TestGenerateProducesDistinctKeys(t *testing.T) {
	g := NewGenerator()
	a, err := g.Generate()
	require.NoError(t, err)
	b, err := g.Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a.PrivateKey, b.PrivateKey)
	assert.NotEqual(t, a.PublicKey, b.PublicKey)
}

func TestGenerateClampsPrivateKey(t *testing.T) {
	g := NewGeneratorWithSource(bytes.NewReader(bytes.Repeat([]byte{0xff}, KeySize)))
	kp, err := g.Generate()
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, byte(0xf8), raw[0])
	assert.Equal(t, byte(0x7f), raw[31])
}

func TestGenerateEntropyFailure(t *testing.T) {
	_, err := NewGeneratorWithSource(failingReader{}).Generate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyGeneration)
}

func TestValidatePublicKey(t *testing.T) {
	valid := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", valid, false},
		{"empty", "", true},
		{"too short", valid[:43], true},
		{"too long", valid + "=", true},
		{"not base64", strings.Repeat("!", 43) + "=", true},
		{"31 bytes", base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 31)), true},
		{"33 bytes", base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 33)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePublicKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPublicKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
