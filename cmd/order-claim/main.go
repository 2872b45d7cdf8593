package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/uhyunpark/orderkit/params"
	"github.com/uhyunpark/orderkit/pkg/chain"
	"github.com/uhyunpark/orderkit/pkg/crypto"
	"github.com/uhyunpark/orderkit/pkg/gateway"
	"github.com/uhyunpark/orderkit/pkg/order"
	"github.com/uhyunpark/orderkit/pkg/util"
)

var (
	envFlag = &cli.StringFlag{
		Name:  "env",
		Usage: "path to a .env file (default: ./.env)",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "log at debug level",
	}
	orderFlag = &cli.StringFlag{
		Name:     "order",
		Usage:    "order JSON file",
		Required: true,
	}
	keyFlag = &cli.StringFlag{
		Name:  "key",
		Usage: "hex private key (overrides PRIVATE_KEY)",
	}
	methodFlag = &cli.StringFlag{
		Name:  "method",
		Usage: "sign method: eth_sign, trezor, eip712, personal_sign (overrides SIGN_METHOD)",
	}
	claimFlag = &cli.StringSliceFlag{
		Name:  "claim",
		Usage: "claim string <method>:0x<signature>; repeat in signer order",
	}
	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "RPC timeout",
		Value: 30 * time.Second,
	}
)

func main() {
	app := &cli.App{
		Name:  "order-claim",
		Usage: "hash, sign and submit atomic orders",
		Flags: []cli.Flag{envFlag, debugFlag},
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "generate a new key pair",
				Action: keygenAction,
			},
			{
				Name:   "seed",
				Usage:  "print a random order seed and an expiration one hour out",
				Action: seedAction,
			},
			{
				Name:   "hash",
				Usage:  "print the order digest",
				Flags:  []cli.Flag{orderFlag},
				Action: hashAction,
			},
			{
				Name:   "sign",
				Usage:  "sign the order and print the claim",
				Flags:  []cli.Flag{orderFlag, keyFlag, methodFlag},
				Action: signAction,
			},
			{
				Name:   "recover",
				Usage:  "recover the signer of each claim",
				Flags:  []cli.Flag{orderFlag, claimFlag},
				Action: recoverAction,
			},
			{
				Name:   "check",
				Usage:  "compare the local digest with the gateway's",
				Flags:  []cli.Flag{orderFlag, timeoutFlag},
				Action: checkAction,
			},
			{
				Name:   "perform",
				Usage:  "submit the order with its claims",
				Flags:  []cli.Flag{orderFlag, claimFlag, keyFlag, timeoutFlag},
				Action: performAction,
			},
			{
				Name:   "cancel",
				Usage:  "cancel the order",
				Flags:  []cli.Flag{orderFlag, keyFlag, timeoutFlag},
				Action: cancelAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// env is what every command builds from flags and configuration
type env struct {
	logger *zap.SugaredLogger
	gw     *gateway.Gateway
	signer *crypto.Signer
	chain  *chain.Client
}

// overrides are the command line values that take precedence over the
// environment
type overrides struct {
	key    string
	method string
}

// resolve applies o to cfg and returns the sign method and, when a key is
// configured, the signer. needKey makes a missing key an error.
func resolve(cfg params.Config, o overrides, needKey bool) (crypto.SignMethod, *crypto.Signer, error) {
	if o.method != "" {
		cfg.Gateway.SignMethod = o.method
	}
	method, err := cfg.SignMethod()
	if err != nil {
		return 0, nil, err
	}
	if o.key != "" {
		cfg.Chain.PrivateKey = o.key
	}
	if cfg.Chain.PrivateKey == "" {
		if needKey {
			return 0, nil, fmt.Errorf("no private key: set PRIVATE_KEY or --key")
		}
		return method, nil, nil
	}
	signer, err := crypto.FromPrivateKeyHex(cfg.Chain.PrivateKey)
	if err != nil {
		return 0, nil, fmt.Errorf("private key: %w", err)
	}
	return method, signer, nil
}

func setup(c *cli.Context, needKey, needChain bool) (*env, error) {
	cfg, err := params.LoadFromEnv(c.String(envFlag.Name))
	if err != nil {
		return nil, err
	}
	logger := util.NewLogger(c.Bool(debugFlag.Name)).Sugar()

	d, err := cfg.Deployment()
	if err != nil {
		return nil, err
	}
	method, key, err := resolve(cfg, overrides{key: c.String(keyFlag.Name), method: c.String(methodFlag.Name)}, needKey)
	if err != nil {
		return nil, err
	}

	e := &env{logger: logger, signer: key}
	var signer gateway.Signer
	if e.signer != nil {
		signer = e.signer
	}
	var client gateway.ChainClient
	if needChain {
		var txSigner chain.TxSigner
		if e.signer != nil {
			txSigner = e.signer
		}
		e.chain, err = chain.Dial(c.Context, cfg.Chain.RPCURL, big.NewInt(cfg.Chain.ChainID), txSigner, logger)
		if err != nil {
			return nil, err
		}
		client = e.chain
	}
	e.gw = gateway.New(d, client, signer, gateway.WithSignMethod(method), gateway.WithLogger(logger))
	return e, nil
}

func (e *env) close() {
	if e.chain != nil {
		e.chain.Close()
	}
	_ = e.logger.Sync()
}

// loadOrder reads an order JSON file and checks that it is well formed for
// the configured deployment.
func loadOrder(path string, d *order.Deployment) (order.Order, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return order.Order{}, err
	}
	o, err := order.ParseOrder(data)
	if err != nil {
		return order.Order{}, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := order.Normalize(o, d); err != nil {
		return order.Order{}, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}

func (e *env) readOrder(c *cli.Context) (order.Order, error) {
	return loadOrder(c.String(orderFlag.Name), e.gw.Deployment())
}

func keygenAction(*cli.Context) error {
	signer, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
	return nil
}

func seedAction(*cli.Context) error {
	seed, err := crypto.GenerateSeed()
	if err != nil {
		return err
	}
	fmt.Printf("seed: %d\n", seed)
	fmt.Printf("expiration: %s\n", order.Seconds(time.Now().Add(time.Hour)))
	return nil
}

func hashAction(c *cli.Context) error {
	e, err := setup(c, false, false)
	if err != nil {
		return err
	}
	defer e.close()
	o, err := e.readOrder(c)
	if err != nil {
		return err
	}
	digest, err := e.gw.Hash(o)
	if err != nil {
		return err
	}
	fmt.Println(digest.Hex())
	return nil
}

func signAction(c *cli.Context) error {
	e, err := setup(c, true, false)
	if err != nil {
		return err
	}
	defer e.close()
	o, err := e.readOrder(c)
	if err != nil {
		return err
	}
	digest, err := e.gw.Hash(o)
	if err != nil {
		return err
	}
	claim, err := e.gw.Claim(c.Context, o)
	if err != nil {
		return err
	}

	fmt.Printf("Signer: %s\n", e.signer.Address().Hex())
	fmt.Printf("Digest: %s\n", digest.Hex())
	fmt.Printf("Claim:  %s\n", claim)

	// verify before handing the claim out
	recovered, err := e.gw.RecoverSigner(o, claim)
	if err != nil {
		return err
	}
	if recovered != e.signer.Address() {
		return fmt.Errorf("claim recovers to %s, expected %s", recovered.Hex(), e.signer.Address().Hex())
	}
	return nil
}

func recoverAction(c *cli.Context) error {
	e, err := setup(c, false, false)
	if err != nil {
		return err
	}
	defer e.close()
	o, err := e.readOrder(c)
	if err != nil {
		return err
	}
	for _, claim := range c.StringSlice(claimFlag.Name) {
		check, err := e.gw.VerifyClaim(o, claim)
		if err != nil {
			return err
		}
		fmt.Printf("slot %d: %s\n", check.Slot, check.Signer.Hex())
	}
	return nil
}

func checkAction(c *cli.Context) error {
	e, err := setup(c, false, true)
	if err != nil {
		return err
	}
	defer e.close()
	o, err := e.readOrder(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration(timeoutFlag.Name))
	defer cancel()

	digest, err := e.gw.CheckDigest(ctx, o)
	if err != nil {
		return err
	}
	fmt.Printf("gateway agrees: %s\n", digest.Hex())
	return nil
}

func performAction(c *cli.Context) error {
	e, err := setup(c, true, true)
	if err != nil {
		return err
	}
	defer e.close()
	o, err := e.readOrder(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration(timeoutFlag.Name))
	defer cancel()

	tx, err := e.gw.Perform(ctx, o, c.StringSlice(claimFlag.Name))
	if err != nil {
		return err
	}
	fmt.Println(tx.Hex())
	return nil
}

func cancelAction(c *cli.Context) error {
	e, err := setup(c, true, true)
	if err != nil {
		return err
	}
	defer e.close()
	o, err := e.readOrder(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration(timeoutFlag.Name))
	defer cancel()

	tx, err := e.gw.Cancel(ctx, o)
	if err != nil {
		return err
	}
	fmt.Println(tx.Hex())
	return nil
}
