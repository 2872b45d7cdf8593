// Package gateway is the entry point for signing and executing orders
// against a deployed gateway contract.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderkit/pkg/crypto"
	"github.com/uhyunpark/orderkit/pkg/order"
)

// ChainClient submits gateway calls. Call is a read-only query, Send a
// state-changing transaction.
type ChainClient interface {
	Call(ctx context.Context, r order.Recipe) ([]interface{}, error)
	Send(ctx context.Context, r order.Recipe) (common.Hash, error)
}

// Signer produces a raw 65-byte signature over an order digest using the
// requested message prefix.
type Signer interface {
	Address() common.Address
	SignDigest(ctx context.Context, method crypto.SignMethod, digest common.Hash) ([]byte, error)
}

var (
	ErrNoSigner       = errors.New("no signer configured")
	ErrNoChainClient  = errors.New("no chain client configured")
	ErrDigestMismatch = errors.New("gateway computes a different order digest")
	ErrNotParticipant = errors.New("claim signer is not a participant")
)

// Gateway composes normalization, hashing, the signature codec and call
// recipes for both order protocols. It holds no mutable state and is safe
// for concurrent use.
type Gateway struct {
	deployment *order.Deployment
	method     crypto.SignMethod
	chain      ChainClient
	signer     Signer
	logger     *zap.SugaredLogger
}

type Option func(*Gateway)

// WithSignMethod sets the prefix scheme used by Claim. Default EthSign.
func WithSignMethod(m crypto.SignMethod) Option {
	return func(g *Gateway) { g.method = m }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New returns a Gateway for deployment d. chain and signer may be nil when
// the caller only needs the operations that do not use them.
func New(d *order.Deployment, chain ChainClient, signer Signer, opts ...Option) *Gateway {
	g := &Gateway{
		deployment: d,
		method:     crypto.EthSign,
		chain:      chain,
		signer:     signer,
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Deployment returns the gateway configuration.
func (g *Gateway) Deployment() *order.Deployment { return g.deployment }

func (g *Gateway) prepare(o order.Order) (order.Protocol, order.Order, error) {
	p, err := order.ProtocolFor(o.Kind, g.deployment)
	if err != nil {
		return nil, order.Order{}, err
	}
	n, err := p.Normalize(o)
	if err != nil {
		return nil, order.Order{}, err
	}
	return p, n, nil
}

// Hash returns the digest the gateway will recompute for o.
func (g *Gateway) Hash(o order.Order) (common.Hash, error) {
	p, n, err := g.prepare(o)
	if err != nil {
		return common.Hash{}, err
	}
	return p.Hash(n)
}

// Claim signs the digest of o with the configured signer and returns the
// claim string "<method>:0x<signature>".
func (g *Gateway) Claim(ctx context.Context, o order.Order) (string, error) {
	digest, err := g.Hash(o)
	if err != nil {
		return "", err
	}
	if g.signer == nil {
		return "", ErrNoSigner
	}
	raw, err := g.signer.SignDigest(ctx, g.method, digest)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	claim, err := order.NewClaim(g.method, raw)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	g.logger.Debugw("order_claimed",
		"kind", o.Kind,
		"digest", digest.Hex(),
		"signer", g.signer.Address().Hex(),
		"method", g.method.String())
	return claim, nil
}

// RecoverSigner returns the address that produced claim for o.
func (g *Gateway) RecoverSigner(o order.Order, claim string) (common.Address, error) {
	digest, err := g.Hash(o)
	if err != nil {
		return common.Address{}, err
	}
	return order.RecoverClaimSigner(digest, claim)
}

// ClaimCheck is a claim whose signer has been recovered and placed in the
// order's signature array.
type ClaimCheck struct {
	Digest common.Hash
	Signer common.Address
	Slot   int
	// Open lists the slots Signer may take when it is not a named
	// participant. Slot is the first of them.
	Open []int
}

// VerifyClaim recovers the signer of claim and resolves its signature slot.
// A stranger is accepted only for the open slots of a signed dynamic order.
func (g *Gateway) VerifyClaim(o order.Order, claim string) (ClaimCheck, error) {
	p, n, err := g.prepare(o)
	if err != nil {
		return ClaimCheck{}, err
	}
	digest, err := p.Hash(n)
	if err != nil {
		return ClaimCheck{}, err
	}
	signer, err := order.RecoverClaimSigner(digest, claim)
	if err != nil {
		return ClaimCheck{}, err
	}
	if slot, ok := p.SignerSlot(n, signer); ok {
		return ClaimCheck{Digest: digest, Signer: signer, Slot: slot}, nil
	}
	open := p.OpenSlots(n)
	if len(open) == 0 {
		return ClaimCheck{}, fmt.Errorf("%w: %s", ErrNotParticipant, signer.Hex())
	}
	return ClaimCheck{Digest: digest, Signer: signer, Slot: open[0], Open: open}, nil
}

// Perform submits o with its claims, one per signature slot in slot order.
// Dynamic orders go to the any-taker entry points and signed orders to the
// signed ones.
func (g *Gateway) Perform(ctx context.Context, o order.Order, claims []string) (common.Hash, error) {
	p, n, err := g.prepare(o)
	if err != nil {
		return common.Hash{}, err
	}
	sigs, err := order.EncodeSignatures(claims)
	if err != nil {
		return common.Hash{}, err
	}
	recipe, err := p.PerformRecipe(n, sigs)
	if err != nil {
		return common.Hash{}, err
	}
	return g.send(ctx, recipe, o.Kind)
}

// Cancel submits a cancellation of o. Only a signer of o can cancel it.
func (g *Gateway) Cancel(ctx context.Context, o order.Order) (common.Hash, error) {
	p, n, err := g.prepare(o)
	if err != nil {
		return common.Hash{}, err
	}
	recipe, err := p.CancelRecipe(n)
	if err != nil {
		return common.Hash{}, err
	}
	return g.send(ctx, recipe, o.Kind)
}

func (g *Gateway) send(ctx context.Context, recipe order.Recipe, kind order.Kind) (common.Hash, error) {
	if g.chain == nil {
		return common.Hash{}, ErrNoChainClient
	}
	tx, err := g.chain.Send(ctx, recipe)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", recipe.Method, err)
	}
	g.logger.Infow("order_submitted",
		"kind", kind,
		"method", recipe.Method,
		"gateway", recipe.Gateway.Hex(),
		"tx", tx.Hex())
	return tx, nil
}

func (g *Gateway) call(ctx context.Context, recipe order.Recipe) (interface{}, error) {
	if g.chain == nil {
		return nil, ErrNoChainClient
	}
	out, err := g.chain.Call(ctx, recipe)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", recipe.Method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s: expected 1 return value, got %d", recipe.Method, len(out))
	}
	return out[0], nil
}

// IsValidSignature asks the gateway whether claim is signer's valid
// signature over o.
func (g *Gateway) IsValidSignature(ctx context.Context, o order.Order, claim string, signer common.Address) (bool, error) {
	p, n, err := g.prepare(o)
	if err != nil {
		return false, err
	}
	digest, err := p.Hash(n)
	if err != nil {
		return false, err
	}
	sig, err := order.EncodeSignature(claim)
	if err != nil {
		return false, err
	}
	out, err := g.call(ctx, p.IsValidSignatureRecipe(signer, digest, sig))
	if err != nil {
		return false, err
	}
	valid, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%s: unexpected return type %T", order.MethodIsValidSignature, out)
	}
	return valid, nil
}

// GetOrderDataClaim returns the digest computed by the gateway's own pure
// hash function.
func (g *Gateway) GetOrderDataClaim(ctx context.Context, o order.Order) (common.Hash, error) {
	p, n, err := g.prepare(o)
	if err != nil {
		return common.Hash{}, err
	}
	recipe, err := p.OrderDataClaimRecipe(n)
	if err != nil {
		return common.Hash{}, err
	}
	out, err := g.call(ctx, recipe)
	if err != nil {
		return common.Hash{}, err
	}
	digest, ok := out.([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("%s: unexpected return type %T", order.MethodGetOrderDataClaim, out)
	}
	return common.Hash(digest), nil
}

// CheckDigest compares the local digest of o with the gateway's before
// anything is signed or paid for.
func (g *Gateway) CheckDigest(ctx context.Context, o order.Order) (common.Hash, error) {
	local, err := g.Hash(o)
	if err != nil {
		return common.Hash{}, err
	}
	remote, err := g.GetOrderDataClaim(ctx, o)
	if err != nil {
		return common.Hash{}, err
	}
	if local != remote {
		return common.Hash{}, fmt.Errorf("%w: local %s, gateway %s", ErrDigestMismatch, local.Hex(), remote.Hex())
	}
	return local, nil
}
