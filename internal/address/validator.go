// Package address validates Stellar account identifiers and optionally checks
// that the account exists on the ledger.
package address

import (
	"encoding/base32"

	"github.com/stellar/go/strkey"

	"certledger/internal/ledger"
)

// Error reasons reported on a Result.
const (
	ErrInvalidFormat   = "Invalid address format"
	ErrInvalidChecksum = "Invalid checksum"
	ErrInvalidNetwork  = "Unsupported network"
)

const (
	accountIDLength = 56
	// decoded layout: version byte, 32 byte ed25519 key, 2 byte CRC16-XModem
	accountIDRawLength = 35
)

var strkeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Classification is the outcome of the local checks on one address.
type Classification struct {
	FormatValid   bool
	ChecksumValid bool
	NetworkValid  bool
	Error         string
}

// Valid is true iff every check passed.
func (c Classification) Valid() bool {
	return c.FormatValid && c.ChecksumValid && c.NetworkValid
}

// Classify runs the format, checksum and network checks. It never touches the
// network. Stellar account ids carry no network tag, so the network check
// only confirms the requested network is one the engine serves.
func Classify(address string, network ledger.Network) Classification {
	c := Classification{NetworkValid: network.Valid()}

	if !wellFormedAccountID(address) {
		c.Error = ErrInvalidFormat
		return c
	}
	c.FormatValid = true

	// The layout is already known good here, so a decode failure is the checksum.
	if _, err := strkey.Decode(strkey.VersionByteAccountID, address); err != nil {
		c.Error = ErrInvalidChecksum
		return c
	}
	c.ChecksumValid = true

	if !c.NetworkValid {
		c.Error = ErrInvalidNetwork
	}
	return c
}

// wellFormedAccountID checks length, alphabet and version byte without
// looking at the checksum.
func wellFormedAccountID(address string) bool {
	if len(address) != accountIDLength || address[0] != 'G' {
		return false
	}
	for i := 0; i < len(address); i++ {
		ch := address[i]
		if (ch < 'A' || ch > 'Z') && (ch < '2' || ch > '7') {
			return false
		}
	}
	raw, err := strkeyEncoding.DecodeString(address)
	return err == nil && len(raw) == accountIDRawLength && raw[0] == byte(strkey.VersionByteAccountID)
}
