package service

import (
	"crypto/sha256"
	"encoding/base64"

	"certledger/internal/ledger"
)

const memoPrefix = "CERT:"

// BuildMemo derives the anchoring memo from the certificate id alone: a text
// memo when it fits, otherwise the SHA-256 of the same text as a hash memo.
func BuildMemo(certificateID string) ledger.Memo {
	text := memoPrefix + certificateID
	if len(text) <= ledger.MaxMemoTextBytes {
		return ledger.Memo{Type: ledger.MemoTypeText, Value: text}
	}
	sum := sha256.Sum256([]byte(text))
	return ledger.Memo{Type: ledger.MemoTypeHash, Value: base64.StdEncoding.EncodeToString(sum[:])}
}

// memoMatches cross-checks the memo the ledger reports against the one the
// certificate id implies. A transaction reported without memo information
// is accepted.
func memoMatches(tx ledger.Transaction, certificateID string) bool {
	if tx.MemoType == "" {
		return true
	}
	want := BuildMemo(certificateID)
	return tx.MemoType == want.Type && tx.Memo == want.Value
}
