package address

import (
	"strings"
	"time"

	"certledger/internal/ledger"
	dErrors "certledger/pkg/domain-errors"
)

// MaxBulkAddresses caps a single bulk validation request.
const MaxBulkAddresses = 100

// CacheKey identifies one cached validation.
type CacheKey struct {
	Address     string
	Network     ledger.Network
	CheckExists bool
}

// Result is the validation outcome for one address. The cache stores and
// hands out clones, so callers may modify what they get back.
type Result struct {
	Address         string                 `json:"address"`
	Network         ledger.Network         `json:"network"`
	IsFormatValid   bool                   `json:"isFormatValid"`
	IsChecksumValid bool                   `json:"isChecksumValid"`
	IsNetworkValid  bool                   `json:"isNetworkValid"`
	IsValid         bool                   `json:"isValid"`
	AccountExists   *bool                  `json:"accountExists,omitempty"`
	AccountDetails  *ledger.AccountDetails `json:"accountDetails,omitempty"`
	Error           string                 `json:"error,omitempty"`
	Note            string                 `json:"note,omitempty"`
}

func (r Result) clone() Result {
	if r.AccountExists != nil {
		exists := *r.AccountExists
		r.AccountExists = &exists
	}
	r.AccountDetails = r.AccountDetails.Clone()
	return r
}

// BulkResult summarises a bulk validation; Results keep request order.
type BulkResult struct {
	Total   int      `json:"total"`
	Valid   int      `json:"valid"`
	Invalid int      `json:"invalid"`
	Results []Result `json:"results"`
}

// CacheStats reports the validation cache. TTL is in milliseconds.
type CacheStats struct {
	Size    int   `json:"size"`
	TTL     int64 `json:"ttl"`
	MaxSize int   `json:"maxSize"`
}

func newCacheStats(size, maxSize int, ttl time.Duration) CacheStats {
	return CacheStats{Size: size, TTL: ttl.Milliseconds(), MaxSize: maxSize}
}

// Request is the single-address validation payload.
type Request struct {
	Address     string `json:"address"`
	Network     string `json:"network"`
	CheckExists bool   `json:"checkExists"`
}

func (r *Request) Normalize() {
	r.Address = strings.TrimSpace(r.Address)
	r.Network = strings.ToLower(strings.TrimSpace(r.Network))
}

func (r *Request) Validate() error {
	if r.Address == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	return nil
}

// BulkRequest validates up to MaxBulkAddresses addresses on one network.
type BulkRequest struct {
	Addresses   []string `json:"addresses"`
	Network     string   `json:"network"`
	CheckExists bool     `json:"checkExists"`
}

func (r *BulkRequest) Normalize() {
	for i, a := range r.Addresses {
		r.Addresses[i] = strings.TrimSpace(a)
	}
	r.Network = strings.ToLower(strings.TrimSpace(r.Network))
}

func (r *BulkRequest) Validate() error {
	if len(r.Addresses) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "addresses must not be empty")
	}
	if len(r.Addresses) > MaxBulkAddresses {
		return dErrors.Newf(dErrors.CodeInvalidInput, "at most %d addresses per request", MaxBulkAddresses)
	}
	return nil
}
