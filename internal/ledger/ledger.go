// Package ledger defines the contract between the certificate engine and the
// external Stellar network. Every call crosses a network boundary, carries a
// bounded timeout and may fail; failures are returned as *Error values so
// callers can tell a missing account from an unreachable ledger.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Network selects the Stellar network variant.
type Network string

const (
	NetworkPublic Network = "public"
	NetworkTest   Network = "test"
)

// ParseNetwork accepts "public"/"mainnet" and "test"/"testnet", case-insensitively.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "mainnet", "pubnet":
		return NetworkPublic, nil
	case "test", "testnet":
		return NetworkTest, nil
	default:
		return "", fmt.Errorf("unknown ledger network %q", s)
	}
}

// Valid reports whether n is one of the supported networks.
func (n Network) Valid() bool {
	return n == NetworkPublic || n == NetworkTest
}

func (n Network) String() string {
	return string(n)
}

// MemoType mirrors the Horizon memo_type values the engine produces.
type MemoType string

const (
	MemoTypeText MemoType = "text"
	MemoTypeHash MemoType = "hash"
)

// MaxMemoTextBytes is the Stellar limit on a text memo.
const MaxMemoTextBytes = 28

// Memo is attached to an anchoring transaction. For hash memos Value is the
// standard base64 encoding of the 32 byte hash, which is how Horizon reports it.
type Memo struct {
	Type  MemoType
	Value string
}

// Account is a freshly created ledger account.
type Account struct {
	Address string
}

// SubmitResult is the outcome of an anchoring transaction. A rejected
// transaction is reported with Successful=false and a reason, not as an error.
type SubmitResult struct {
	Successful bool
	Hash       string
	Error      string
}

// Transaction is what the ledger reports for a previously submitted hash.
type Transaction struct {
	Hash            string
	Successful      bool
	MemoType        MemoType
	Memo            string
	Ledger          int32
	LedgerCloseTime time.Time
}

// Balance is one asset balance held by an account.
type Balance struct {
	AssetType   string `json:"assetType"`
	AssetCode   string `json:"assetCode,omitempty"`
	AssetIssuer string `json:"assetIssuer,omitempty"`
	Balance     string `json:"balance"`
}

// AccountDetails summarises an existing account.
type AccountDetails struct {
	AccountID     string    `json:"accountId"`
	Sequence      int64     `json:"sequence"`
	SubentryCount int32     `json:"subentryCount"`
	SignerCount   int       `json:"signerCount"`
	Balances      []Balance `json:"balances"`
}

// Clone returns a deep copy; nil stays nil.
func (d *AccountDetails) Clone() *AccountDetails {
	if d == nil {
		return nil
	}
	out := *d
	if d.Balances != nil {
		out.Balances = append([]Balance(nil), d.Balances...)
	}
	return &out
}

// AccountStatus answers an existence check.
type AccountStatus struct {
	Exists  bool
	Details *AccountDetails
}

// Gateway is the single ledger backend the engine talks to.
type Gateway interface {
	// CreateAccount creates and funds a fresh keypair and returns its address.
	CreateAccount(ctx context.Context) (Account, error)
	// SubmitTransaction anchors memo in a transaction paying destination.
	SubmitTransaction(ctx context.Context, destination string, memo Memo) (SubmitResult, error)
	// GetTransaction looks up a transaction on the configured network.
	GetTransaction(ctx context.Context, hash string) (Transaction, error)
	// AccountExists checks whether address exists on network. A missing account
	// is Exists=false with a nil error.
	AccountExists(ctx context.Context, address string, network Network) (AccountStatus, error)
}
