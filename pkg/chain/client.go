// Package chain is the JSON-RPC transport for gateway recipes.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderkit/pkg/order"
)

// Backend is the subset of *ethclient.Client the transport needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TxSigner pays for and signs submitted transactions.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

var (
	ErrReadOnly = errors.New("chain client has no transaction signer")
	ErrNoResult = errors.New("empty call result")
)

// Client sends recipes to the gateway each one names. It is read-only when
// built without a TxSigner.
type Client struct {
	backend Backend
	chainID *big.Int
	signer  TxSigner
	logger  *zap.SugaredLogger
	close   func()
}

func NewClient(backend Backend, chainID *big.Int, signer TxSigner, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{backend: backend, chainID: chainID, signer: signer, logger: logger}
}

// Dial connects to rawurl. A nil chainID is fetched from the node.
func Dial(ctx context.Context, rawurl string, chainID *big.Int, signer TxSigner, logger *zap.SugaredLogger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawurl, err)
	}
	if chainID == nil || chainID.Sign() == 0 {
		if chainID, err = ec.ChainID(ctx); err != nil {
			ec.Close()
			return nil, fmt.Errorf("chain id: %w", err)
		}
	}
	c := NewClient(ec, chainID, signer, logger)
	c.close = ec.Close
	return c, nil
}

func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Call runs r as an eth_call against the latest block and unpacks the
// method outputs.
func (c *Client) Call(ctx context.Context, r order.Recipe) ([]interface{}, error) {
	data, err := r.Pack()
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", r.Method, err)
	}
	to := r.Gateway
	msg := ethereum.CallMsg{To: &to, Data: data}
	if c.signer != nil {
		msg.From = c.signer.Address()
	}
	out, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s at %s", ErrNoResult, r.Method, to.Hex())
	}
	return r.ABI.Unpack(r.Method, out)
}

// Send signs r as a legacy transaction from the configured signer and
// broadcasts it. It returns once the node accepts the transaction.
func (c *Client) Send(ctx context.Context, r order.Recipe) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, ErrReadOnly
	}
	data, err := r.Pack()
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack %s: %w", r.Method, err)
	}
	from := c.signer.Address()
	to := r.Gateway

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, GasPrice: gasPrice, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}

	c.logger.Infow("tx_sent",
		"method", r.Method,
		"to", to.Hex(),
		"from", from.Hex(),
		"nonce", nonce,
		"gas", gas,
		"tx", signed.Hash().Hex())
	return signed.Hash(), nil
}
