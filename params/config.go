package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/uhyunpark/orderkit/pkg/crypto"
	"github.com/uhyunpark/orderkit/pkg/order"
)

type Chain struct {
	RPCURL string
	// ChainID 0 means ask the node.
	ChainID    int64
	PrivateKey string // hex, with or without 0x
}

type Gateway struct {
	ActionsGateway string
	OrderGateway   string
	// ProxyIDs are the registered ids in order.AllProxies order. Empty keeps
	// the defaults.
	ProxyIDs      []uint32
	UnsafeLedgers []string
	SignMethod    string
}

type Relay struct {
	ClaimDBPath string
	APIAddr     string
	CORSOrigins []string
}

type Config struct {
	Chain   Chain
	Gateway Gateway
	Relay   Relay
	LogFile string
}

func Default() Config {
	return Config{
		Chain: Chain{
			RPCURL: "http://127.0.0.1:8545",
		},
		Gateway: Gateway{
			SignMethod: crypto.EthSign.String(),
		},
		Relay: Relay{
			ClaimDBPath: "data/claims",
			APIAddr:     ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		LogFile: "data/relay.log",
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Chain.RPCURL = getEnv("RPC_URL", cfg.Chain.RPCURL)
	cfg.Chain.PrivateKey = getEnv("PRIVATE_KEY", cfg.Chain.PrivateKey)
	if id := os.Getenv("CHAIN_ID"); id != "" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CHAIN_ID: %w", err)
		}
		cfg.Chain.ChainID = n
	}

	cfg.Gateway.ActionsGateway = getEnv("ACTIONS_GATEWAY", cfg.Gateway.ActionsGateway)
	cfg.Gateway.OrderGateway = getEnv("ORDER_GATEWAY", cfg.Gateway.OrderGateway)
	cfg.Gateway.SignMethod = getEnv("SIGN_METHOD", cfg.Gateway.SignMethod)
	if ids := os.Getenv("PROXY_IDS"); ids != "" {
		// Example: "0,1,2,3,4,5,6"
		parsed := make([]uint32, 0, len(order.AllProxies()))
		for _, f := range splitList(ids) {
			n, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return Config{}, fmt.Errorf("PROXY_IDS: %w", err)
			}
			parsed = append(parsed, uint32(n))
		}
		cfg.Gateway.ProxyIDs = parsed
	}
	if ledgers := os.Getenv("UNSAFE_LEDGERS"); ledgers != "" {
		cfg.Gateway.UnsafeLedgers = splitList(ledgers)
	}

	cfg.Relay.ClaimDBPath = getEnv("CLAIM_DB_PATH", cfg.Relay.ClaimDBPath)
	cfg.Relay.APIAddr = getEnv("API_ADDR", cfg.Relay.APIAddr)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Relay.CORSOrigins = splitList(origins)
	}
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)

	return cfg, nil
}

// Deployment builds the gateway deployment the config describes.
func (c Config) Deployment() (*order.Deployment, error) {
	actions, err := address("ACTIONS_GATEWAY", c.Gateway.ActionsGateway)
	if err != nil {
		return nil, err
	}
	legacy, err := address("ORDER_GATEWAY", c.Gateway.OrderGateway)
	if err != nil {
		return nil, err
	}
	var unsafe []common.Address
	for _, l := range c.Gateway.UnsafeLedgers {
		a, err := address("UNSAFE_LEDGERS", l)
		if err != nil {
			return nil, err
		}
		unsafe = append(unsafe, a)
	}

	d := order.NewDeployment(actions, legacy, unsafe...)
	if len(c.Gateway.ProxyIDs) > 0 {
		proxies := order.AllProxies()
		if len(c.Gateway.ProxyIDs) != len(proxies) {
			return nil, fmt.Errorf("PROXY_IDS: want %d ids, got %d", len(proxies), len(c.Gateway.ProxyIDs))
		}
		for i, p := range proxies {
			d.ProxyIDs[p] = c.Gateway.ProxyIDs[i]
		}
	}
	return d, nil
}

func (c Config) SignMethod() (crypto.SignMethod, error) {
	return crypto.ParseSignMethod(c.Gateway.SignMethod)
}

// address accepts an empty value as the zero address
func address(key, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", key, value)
	}
	return common.HexToAddress(value), nil
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
