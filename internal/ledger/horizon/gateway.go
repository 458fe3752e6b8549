// Package horizon implements ledger.Gateway against Stellar Horizon.
package horizon

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/txnbuild"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"certledger/internal/ledger"
	"certledger/pkg/platform/circuit"
)

const (
	opCreateAccount = "create_account"
	opSubmit        = "submit_transaction"
	opGetTx         = "get_transaction"
	opAccount       = "account_detail"
)

const (
	DefaultPublicURL       = "https://horizon.stellar.org"
	DefaultTestnetURL      = "https://horizon-testnet.stellar.org"
	DefaultTimeout         = 10 * time.Second
	DefaultAnchorAmount    = "0.0000001"
	DefaultStartingBalance = "1"
)

// Config selects the networks and issuer account.
type Config struct {
	// Network is where certificates are anchored.
	Network      ledger.Network
	PublicURL    string
	TestnetURL   string
	IssuerSecret string
	Timeout      time.Duration
	// BaseFee in stroops; zero means txnbuild.MinBaseFee.
	BaseFee         int64
	AnchorAmount    string
	StartingBalance string
}

// Gateway talks to one Horizon instance per network. Certificates are
// anchored on the configured network; existence checks may target either.
type Gateway struct {
	clients         map[ledger.Network]horizonclient.ClientInterface
	network         ledger.Network
	passphrase      string
	issuer          *keypair.Full
	timeout         time.Duration
	baseFee         int64
	anchorAmount    string
	startingBalance string
	breaker         *circuit.Breaker
	logger          *slog.Logger
	metrics         *Metrics
	tracer          trace.Tracer
}

type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(g *Gateway) {
		g.breaker = b
	}
}

// WithClient replaces the Horizon client used for network.
func WithClient(n ledger.Network, client horizonclient.ClientInterface) Option {
	return func(g *Gateway) {
		g.clients[n] = client
	}
}

// New builds a Gateway. The issuer secret is required: it signs every
// anchoring transaction.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if !cfg.Network.Valid() {
		return nil, fmt.Errorf("unsupported ledger network %q", cfg.Network)
	}
	if cfg.IssuerSecret == "" {
		return nil, errors.New("issuer secret key is required")
	}
	issuer, err := keypair.ParseFull(cfg.IssuerSecret)
	if err != nil {
		return nil, fmt.Errorf("parse issuer secret key: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = DefaultPublicURL
	}
	if cfg.TestnetURL == "" {
		cfg.TestnetURL = DefaultTestnetURL
	}
	if cfg.BaseFee <= 0 {
		cfg.BaseFee = txnbuild.MinBaseFee
	}
	if cfg.AnchorAmount == "" {
		cfg.AnchorAmount = DefaultAnchorAmount
	}
	if cfg.StartingBalance == "" {
		cfg.StartingBalance = DefaultStartingBalance
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	g := &Gateway{
		clients: map[ledger.Network]horizonclient.ClientInterface{
			ledger.NetworkPublic: &horizonclient.Client{HorizonURL: cfg.PublicURL, HTTP: httpClient},
			ledger.NetworkTest:   &horizonclient.Client{HorizonURL: cfg.TestnetURL, HTTP: httpClient},
		},
		network:         cfg.Network,
		passphrase:      passphraseFor(cfg.Network),
		issuer:          issuer,
		timeout:         cfg.Timeout,
		baseFee:         cfg.BaseFee,
		anchorAmount:    cfg.AnchorAmount,
		startingBalance: cfg.StartingBalance,
		tracer:          otel.Tracer("certledger/ledger/horizon"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.breaker == nil {
		g.breaker = circuit.New("horizon")
	}
	return g, nil
}

func passphraseFor(n ledger.Network) string {
	if n == ledger.NetworkPublic {
		return network.PublicNetworkPassphrase
	}
	return network.TestNetworkPassphrase
}

// IssuerAddress is the account that signs anchoring transactions.
func (g *Gateway) IssuerAddress() string {
	return g.issuer.Address()
}

// CreateAccount funds a fresh keypair: friendbot on the test network, a
// CreateAccount operation from the issuer on the public network.
func (g *Gateway) CreateAccount(ctx context.Context) (ledger.Account, error) {
	ctx, span := g.tracer.Start(ctx, "horizon.CreateAccount")
	defer span.End()

	kp, err := keypair.Random()
	if err != nil {
		return ledger.Account{}, ledger.NewError(ledger.CategoryInternal, opCreateAccount, "generate keypair", err)
	}
	span.SetAttributes(attribute.String("ledger.account", kp.Address()))

	client := g.clients[g.network]
	if g.network == ledger.NetworkTest {
		_, err = call(ctx, g, opCreateAccount, func() (hProtocol.Transaction, error) {
			return client.Fund(kp.Address())
		})
	} else {
		var res ledger.SubmitResult
		res, err = g.submit(ctx, opCreateAccount, &txnbuild.CreateAccount{
			Destination: kp.Address(),
			Amount:      g.startingBalance,
		}, nil)
		if err == nil && !res.Successful {
			err = ledger.NewError(ledger.CategoryRejected, opCreateAccount, res.Error, nil)
		}
	}
	if err != nil {
		recordSpanError(span, err)
		return ledger.Account{}, err
	}

	g.logger.InfoContext(ctx, "ledger account created",
		"address", kp.Address(),
		"network", g.network,
	)
	return ledger.Account{Address: kp.Address()}, nil
}

// SubmitTransaction pays the anchor amount from the issuer to destination with
// memo attached. A transaction refused by the ledger comes back as
// Successful=false; errors are reserved for calls that never got an answer.
func (g *Gateway) SubmitTransaction(ctx context.Context, destination string, memo ledger.Memo) (ledger.SubmitResult, error) {
	ctx, span := g.tracer.Start(ctx, "horizon.SubmitTransaction",
		trace.WithAttributes(
			attribute.String("ledger.destination", destination),
			attribute.String("ledger.memo_type", string(memo.Type)),
		))
	defer span.End()

	txMemo, err := toTxnMemo(memo)
	if err != nil {
		le := ledger.NewError(ledger.CategoryBadRequest, opSubmit, "invalid memo", err)
		recordSpanError(span, le)
		return ledger.SubmitResult{}, le
	}

	res, err := g.submit(ctx, opSubmit, &txnbuild.Payment{
		Destination: destination,
		Amount:      g.anchorAmount,
		Asset:       txnbuild.NativeAsset{},
	}, txMemo)
	if err != nil {
		recordSpanError(span, err)
		return ledger.SubmitResult{}, err
	}
	if !res.Successful {
		span.SetStatus(codes.Error, res.Error)
	}
	span.SetAttributes(attribute.String("ledger.tx_hash", res.Hash))
	return res, nil
}

func (g *Gateway) submit(ctx context.Context, op string, operation txnbuild.Operation, memo txnbuild.Memo) (ledger.SubmitResult, error) {
	client := g.clients[g.network]

	source, err := call(ctx, g, opAccount, func() (hProtocol.Account, error) {
		return client.AccountDetail(horizonclient.AccountRequest{AccountID: g.issuer.Address()})
	})
	if err != nil {
		return ledger.SubmitResult{}, err
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{operation},
		BaseFee:              g.baseFee,
		Memo:                 memo,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(int64(g.timeout / time.Second))},
	})
	if err != nil {
		return ledger.SubmitResult{}, ledger.NewError(ledger.CategoryBadRequest, op, "build transaction", err)
	}
	tx, err = tx.Sign(g.passphrase, g.issuer)
	if err != nil {
		return ledger.SubmitResult{}, ledger.NewError(ledger.CategoryInternal, op, "sign transaction", err)
	}

	resp, err := call(ctx, g, op, func() (hProtocol.Transaction, error) {
		return client.SubmitTransaction(tx)
	})
	if err != nil {
		var le *ledger.Error
		if errors.As(err, &le) && le.Category == ledger.CategoryRejected {
			g.logger.WarnContext(ctx, "ledger rejected transaction",
				"op", op,
				"reason", le.Message,
			)
			return ledger.SubmitResult{Successful: false, Error: le.Message}, nil
		}
		return ledger.SubmitResult{}, err
	}
	if !resp.Successful {
		return ledger.SubmitResult{Successful: false, Hash: resp.Hash, Error: "transaction failed"}, nil
	}
	return ledger.SubmitResult{Successful: true, Hash: resp.Hash}, nil
}

// GetTransaction looks up hash on the anchoring network.
func (g *Gateway) GetTransaction(ctx context.Context, hash string) (ledger.Transaction, error) {
	ctx, span := g.tracer.Start(ctx, "horizon.GetTransaction",
		trace.WithAttributes(attribute.String("ledger.tx_hash", hash)))
	defer span.End()

	client := g.clients[g.network]
	tx, err := call(ctx, g, opGetTx, func() (hProtocol.Transaction, error) {
		return client.TransactionDetail(hash)
	})
	if err != nil {
		recordSpanError(span, err)
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		Hash:            tx.Hash,
		Successful:      tx.Successful,
		MemoType:        ledger.MemoType(tx.MemoType),
		Memo:            tx.Memo,
		Ledger:          tx.Ledger,
		LedgerCloseTime: tx.LedgerCloseTime,
	}, nil
}

// AccountExists reports whether address exists on n. A 404 is a definite
// "no", not an error.
func (g *Gateway) AccountExists(ctx context.Context, address string, n ledger.Network) (ledger.AccountStatus, error) {
	ctx, span := g.tracer.Start(ctx, "horizon.AccountExists",
		trace.WithAttributes(
			attribute.String("ledger.account", address),
			attribute.String("ledger.network", string(n)),
		))
	defer span.End()

	client, ok := g.clients[n]
	if !ok {
		return ledger.AccountStatus{}, ledger.NewError(ledger.CategoryBadRequest, opAccount, fmt.Sprintf("unsupported network %q", n), nil)
	}
	acct, err := call(ctx, g, opAccount, func() (hProtocol.Account, error) {
		return client.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	})
	if err != nil {
		if ledger.IsNotFound(err) {
			return ledger.AccountStatus{Exists: false}, nil
		}
		recordSpanError(span, err)
		return ledger.AccountStatus{}, err
	}
	return ledger.AccountStatus{Exists: true, Details: toAccountDetails(acct)}, nil
}

func toAccountDetails(acct hProtocol.Account) *ledger.AccountDetails {
	seq, _ := acct.GetSequenceNumber()
	details := &ledger.AccountDetails{
		AccountID:     acct.AccountID,
		Sequence:      seq,
		SubentryCount: acct.SubentryCount,
		SignerCount:   len(acct.Signers),
		Balances:      make([]ledger.Balance, 0, len(acct.Balances)),
	}
	for _, b := range acct.Balances {
		details.Balances = append(details.Balances, ledger.Balance{
			AssetType:   b.Type,
			AssetCode:   b.Code,
			AssetIssuer: b.Issuer,
			Balance:     b.Balance,
		})
	}
	return details
}

func toTxnMemo(m ledger.Memo) (txnbuild.Memo, error) {
	switch m.Type {
	case ledger.MemoTypeText:
		if len(m.Value) > ledger.MaxMemoTextBytes {
			return nil, fmt.Errorf("text memo is %d bytes, limit is %d", len(m.Value), ledger.MaxMemoTextBytes)
		}
		return txnbuild.MemoText(m.Value), nil
	case ledger.MemoTypeHash:
		raw, err := base64.StdEncoding.DecodeString(m.Value)
		if err != nil {
			return nil, fmt.Errorf("decode hash memo: %w", err)
		}
		var h txnbuild.MemoHash
		if len(raw) != len(h) {
			return nil, fmt.Errorf("hash memo must be %d bytes, got %d", len(h), len(raw))
		}
		copy(h[:], raw)
		return h, nil
	default:
		return nil, fmt.Errorf("unsupported memo type %q", m.Type)
	}
}

// call runs fn with the gateway timeout behind the circuit breaker. The SDK
// calls take no context, so fn runs in its own goroutine and is abandoned
// when ctx expires; the HTTP client timeout bounds the abandoned request.
func call[T any](ctx context.Context, g *Gateway, op string, fn func() (T, error)) (T, error) {
	var zero T
	if !g.breaker.Allow() {
		g.recordError(op, ledger.CategoryCircuitOpen)
		return zero, ledger.NewError(ledger.CategoryCircuitOpen, op, "ledger circuit open", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		v, err := fn()
		done <- outcome{val: v, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: ctx.Err()}
	}
	if g.metrics != nil {
		g.metrics.observe(op, start)
	}

	if out.err == nil {
		g.recordBreaker(ctx, false)
		return out.val, nil
	}
	le := classify(op, out.err)
	g.recordError(op, le.Category)
	g.recordBreaker(ctx, countsAgainstBreaker(le.Category))
	return zero, le
}

func (g *Gateway) recordBreaker(ctx context.Context, failed bool) {
	var change circuit.StateChange
	if failed {
		_, change = g.breaker.RecordFailure()
	} else {
		_, change = g.breaker.RecordSuccess()
	}
	switch {
	case change.Opened:
		g.logger.WarnContext(ctx, "ledger circuit opened", "breaker", g.breaker.Name())
	case change.Closed:
		g.logger.InfoContext(ctx, "ledger circuit closed", "breaker", g.breaker.Name())
	}
	if g.metrics != nil && (change.Opened || change.Closed) {
		g.metrics.setBreakerOpen(change.Opened)
	}
}

func (g *Gateway) recordError(op string, category ledger.Category) {
	if g.metrics != nil {
		g.metrics.incrementError(op, string(category))
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(ledger.CategoryOf(err)))
}

var _ ledger.Gateway = (*Gateway)(nil)
