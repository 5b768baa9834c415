package hashutil_test

import (
	"encoding/hex"
	"testing"

	"github.com/rohmanhakim/dns-cache/pkg/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

func digest(t *testing.T, algo hashutil.HashAlgo, chunks ...string) string {
	t.Helper()
	h, err := hashutil.NewHasher(algo)
	require.NoError(t, err)
	for _, chunk := range chunks {
		h.Write([]byte(chunk))
	}
	return hashutil.Hex(h)
}

func TestNewHasher_SHA256(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		expected string
	}{
		{
			name:     "empty data",
			data:     "",
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:     "simple string",
			data:     "hello world",
			expected: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, digest(t, hashutil.HashAlgoSHA256, tt.data))
		})
	}
}

func TestNewHasher_BLAKE3MatchesSum256(t *testing.T) {
	data := "123\x00123:456\n"
	sum := blake3.Sum256([]byte(data))

	result := digest(t, hashutil.HashAlgoBLAKE3, data)
	assert.Equal(t, hex.EncodeToString(sum[:]), result)
	assert.Len(t, result, 64)
}

func TestNewHasher_UnsupportedAlgorithm(t *testing.T) {
	h, err := hashutil.NewHasher("md5")
	assert.Error(t, err)
	assert.Nil(t, h)
}

func TestNewHasher_ChunkingDoesNotChangeDigest(t *testing.T) {
	for _, algo := range []hashutil.HashAlgo{hashutil.HashAlgoSHA256, hashutil.HashAlgoBLAKE3} {
		t.Run(string(algo), func(t *testing.T) {
			chunked := digest(t, algo, "a.example\x001\n", "b.example\x002\n")
			whole := digest(t, algo, "a.example\x001\nb.example\x002\n")
			assert.Equal(t, whole, chunked)
		})
	}
}

func TestHex_DoesNotResetHasher(t *testing.T) {
	h, err := hashutil.NewHasher(hashutil.HashAlgoSHA256)
	require.NoError(t, err)
	h.Write([]byte("hello "))
	_ = hashutil.Hex(h)
	h.Write([]byte("world"))

	assert.Equal(t, digest(t, hashutil.HashAlgoSHA256, "hello world"), hashutil.Hex(h))
}

func TestParseHashAlgo(t *testing.T) {
	algo, err := hashutil.ParseHashAlgo("blake3")
	require.NoError(t, err)
	assert.Equal(t, hashutil.HashAlgoBLAKE3, algo)

	algo, err = hashutil.ParseHashAlgo("sha256")
	require.NoError(t, err)
	assert.Equal(t, hashutil.HashAlgoSHA256, algo)

	_, err = hashutil.ParseHashAlgo("crc32")
	assert.Error(t, err)
}
