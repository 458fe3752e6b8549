package address

import (
	"strings"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/ledger"
)

func corruptLastChar(addr string) string {
	last := addr[len(addr)-1]
	replacement := byte('A')
	if last == 'A' {
		replacement = 'B'
	}
	return addr[:len(addr)-1] + string(replacement)
}

func TestClassify(t *testing.T) {
	kp, err := keypair.Random()
	require.NoError(t, err)
	valid := kp.Address()

	tests := []struct {
		name      string
		address   string
		network   ledger.Network
		format    bool
		checksum  bool
		networkOK bool
		errMsg    string
	}{
		{"valid public", valid, ledger.NetworkPublic, true, true, true, ""},
		{"valid test", valid, ledger.NetworkTest, true, true, true, ""},
		{"garbage", "INVALID_ADDRESS", ledger.NetworkPublic, false, false, true, ErrInvalidFormat},
		{"empty", "", ledger.NetworkTest, false, false, true, ErrInvalidFormat},
		{"too short", valid[:55], ledger.NetworkPublic, false, false, true, ErrInvalidFormat},
		{"lowercase", "g" + valid[1:], ledger.NetworkPublic, false, false, true, ErrInvalidFormat},
		{"secret seed", kp.Seed(), ledger.NetworkPublic, false, false, true, ErrInvalidFormat},
		{"bad alphabet", valid[:10] + "1" + valid[11:], ledger.NetworkPublic, false, false, true, ErrInvalidFormat},
		{"corrupted checksum", corruptLastChar(valid), ledger.NetworkPublic, true, false, true, ErrInvalidChecksum},
		{"unknown network", valid, ledger.Network("futurenet"), true, true, false, ErrInvalidNetwork},
		{"garbage unknown network", "INVALID_ADDRESS", ledger.Network("futurenet"), false, false, false, ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.address, tt.network)
			assert.Equal(t, tt.format, c.FormatValid, "format")
			assert.Equal(t, tt.checksum, c.ChecksumValid, "checksum")
			assert.Equal(t, tt.networkOK, c.NetworkValid, "network")
			assert.Equal(t, tt.errMsg, c.Error)
			assert.Equal(t, tt.format && tt.checksum && tt.networkOK, c.Valid())
		})
	}
}

func TestClassifyInvalidFormatNeverValid(t *testing.T) {
	for range 50 {
		addr := keypair.MustRandom().Address()
		for _, mangled := range []string{addr[1:], addr + "A", "S" + addr[1:], addr[:20] + "0" + addr[21:]} {
			c := Classify(mangled, ledger.NetworkPublic)
			assert.False(t, c.FormatValid, mangled)
			assert.False(t, c.Valid(), mangled)
		}
	}
}

func TestClassifyCorruptedChecksumKeepsFormat(t *testing.T) {
	for range 50 {
		c := Classify(corruptLastChar(keypair.MustRandom().Address()), ledger.NetworkTest)
		assert.True(t, c.FormatValid)
		assert.False(t, c.ChecksumValid)
		assert.False(t, c.Valid())
	}
}

func TestClassifyKnownVectors(t *testing.T) {
	zeroKey := "G" + strings.Repeat("A", 52) + "WHF"

	c := Classify(zeroKey, ledger.NetworkPublic)
	assert.True(t, c.Valid())
	assert.Empty(t, c.Error)

	c = Classify(zeroKey[:55]+"G", ledger.NetworkPublic)
	assert.Equal(t, Classification{
		FormatValid:   true,
		ChecksumValid: false,
		NetworkValid:  true,
		Error:         ErrInvalidChecksum,
	}, c)

	c = Classify("INVALID_ADDRESS", ledger.NetworkPublic)
	assert.False(t, c.FormatValid)
	assert.Equal(t, ErrInvalidFormat, c.Error)
}
