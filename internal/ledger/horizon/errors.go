package horizon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/stellar/go/clients/horizonclient"

	"certledger/internal/ledger"
)

// classify folds a horizonclient or transport error into a ledger.Error.
func classify(op string, err error) *ledger.Error {
	var le *ledger.Error
	if errors.As(err, &le) {
		return le
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ledger.NewError(ledger.CategoryTimeout, op, "deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return ledger.NewError(ledger.CategoryUnavailable, op, "request canceled", err)
	}

	if horizonclient.IsNotFoundError(err) {
		return ledger.NewError(ledger.CategoryNotFound, op, "resource missing", err)
	}
	if herr := horizonclient.GetError(err); herr != nil {
		status := herr.Problem.Status
		switch {
		case status == http.StatusNotFound:
			return ledger.NewError(ledger.CategoryNotFound, op, "resource missing", err)
		case status == http.StatusTooManyRequests:
			return ledger.NewError(ledger.CategoryUnavailable, op, "horizon rate limit exceeded", err)
		case status == http.StatusGatewayTimeout:
			return ledger.NewError(ledger.CategoryTimeout, op, "horizon timed out", err)
		case status >= http.StatusInternalServerError:
			return ledger.NewError(ledger.CategoryUnavailable, op, herr.Problem.Title, err)
		case status == http.StatusBadRequest && op == opSubmit:
			return ledger.NewError(ledger.CategoryRejected, op, rejectionReason(herr), err)
		default:
			return ledger.NewError(ledger.CategoryBadRequest, op, herr.Problem.Title, err)
		}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ledger.NewError(ledger.CategoryTimeout, op, "network timeout", err)
	}
	return ledger.NewError(ledger.CategoryUnavailable, op, "horizon unreachable", err)
}

// rejectionReason prefers the transaction and operation result codes over the
// problem title.
func rejectionReason(herr *horizonclient.Error) string {
	codes, err := herr.ResultCodes()
	if err != nil || codes == nil || codes.TransactionCode == "" {
		if herr.Problem.Title != "" {
			return herr.Problem.Title
		}
		return "transaction rejected"
	}
	reason := codes.TransactionCode
	if len(codes.OperationCodes) > 0 {
		reason += ": " + strings.Join(codes.OperationCodes, ",")
	}
	return reason
}

// countsAgainstBreaker is true for failures that say the ledger is unhealthy
// rather than that the request was wrong.
func countsAgainstBreaker(category ledger.Category) bool {
	return category == ledger.CategoryTimeout || category == ledger.CategoryUnavailable
}
