package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)
	assert.NotEmpty(t, signer.PublicKey())

	payload := map[string]interface{}{"poolCount": 3, "weightedApy": 8.33}
	sp, err := signer.Sign(payload)
	require.NoError(t, err)

	assert.NotEmpty(t, sp.Signature)
	assert.Equal(t, signer.PublicKey(), sp.PublicKey)
	assert.NotZero(t, sp.SignedAt)

	ok, err := signer.Verify(sp)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	sp, err := signer.Sign(map[string]string{"value": "original"})
	require.NoError(t, err)

	sp.Payload = []byte(`{"value":"tampered"}`)
	ok, err := signer.Verify(sp)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_RejectsForeignKey(t *testing.T) {
	a, err := NewSigner()
	require.NoError(t, err)
	b, err := NewSigner()
	require.NoError(t, err)

	sp, err := a.Sign(map[string]string{"value": "x"})
	require.NoError(t, err)

	ok, err := b.Verify(sp)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_MalformedSignature(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	sp, err := signer.Sign(map[string]string{"value": "x"})
	require.NoError(t, err)

	sp.Signature = "not base64!!!"
	_, err = signer.Verify(sp)
	assert.Error(t, err)
}
