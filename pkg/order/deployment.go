package order

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Proxy is an on-chain delegate that performs one category of ledger
// mutation on behalf of a gateway.
type Proxy int

const (
	XcertCreate Proxy = iota
	TokenTransfer
	NFTokenTransfer
	NFTokenSafeTransfer
	AbilitiesManage
	XcertBurn
	XcertUpdate
)

var proxyNames = [...]string{
	XcertCreate:         "XcertCreate",
	TokenTransfer:       "TokenTransfer",
	NFTokenTransfer:     "NFTokenTransfer",
	NFTokenSafeTransfer: "NFTokenSafeTransfer",
	AbilitiesManage:     "AbilitiesManage",
	XcertBurn:           "XcertBurn",
	XcertUpdate:         "XcertUpdate",
}

func (p Proxy) String() string {
	if p >= 0 && int(p) < len(proxyNames) {
		return proxyNames[p]
	}
	return fmt.Sprintf("Proxy(%d)", int(p))
}

// AllProxies lists the proxies in their default id order.
func AllProxies() []Proxy {
	return []Proxy{XcertCreate, TokenTransfer, NFTokenTransfer, NFTokenSafeTransfer, AbilitiesManage, XcertBurn, XcertUpdate}
}

// DefaultProxyIDs maps every proxy to its position in AllProxies.
func DefaultProxyIDs() map[Proxy]uint32 {
	ids := make(map[Proxy]uint32, len(proxyNames))
	for _, p := range AllProxies() {
		ids[p] = uint32(p)
	}
	return ids
}

// Deployment describes one set of gateway contracts. It is passed explicitly
// to every encoding function so several deployments can coexist in a process.
// Treat it as read-only once built.
type Deployment struct {
	// ActionsGateway verifies N-party orders and is their domain tag.
	ActionsGateway common.Address
	// OrderGateway verifies legacy 2-party orders and is their domain tag.
	OrderGateway common.Address
	// ProxyIDs maps each proxy to the id registered on the gateway.
	ProxyIDs map[Proxy]uint32
	// UnsafeLedgers are asset ledgers whose transfers go through the plain
	// NFTokenTransfer proxy instead of the receipt-checking safe one.
	UnsafeLedgers []common.Address
}

// NewDeployment returns a deployment with the default proxy ids.
func NewDeployment(actionsGateway, orderGateway common.Address, unsafeLedgers ...common.Address) *Deployment {
	return &Deployment{
		ActionsGateway: actionsGateway,
		OrderGateway:   orderGateway,
		ProxyIDs:       DefaultProxyIDs(),
		UnsafeLedgers:  unsafeLedgers,
	}
}

// IsUnsafeLedger reports whether ledger is registered as tolerating
// receivers that do not acknowledge transfers.
func (d *Deployment) IsUnsafeLedger(ledger common.Address) bool {
	for _, l := range d.UnsafeLedgers {
		if l == ledger {
			return true
		}
	}
	return false
}

// ResolveProxy picks the proxy that will execute a.
func (d *Deployment) ResolveProxy(a Action) (Proxy, error) {
	switch a.Kind {
	case CreateAsset:
		return XcertCreate, nil
	case UpdateAssetImprint:
		return XcertUpdate, nil
	case DestroyAsset:
		return XcertBurn, nil
	case SetAbilities:
		return AbilitiesManage, nil
	case TransferValue:
		return TokenTransfer, nil
	case TransferAsset:
		if d.IsUnsafeLedger(common.HexToAddress(a.LedgerID)) {
			return NFTokenTransfer, nil
		}
		return NFTokenSafeTransfer, nil
	default:
		return 0, fmt.Errorf("%w: %q", IssueActionKindNotSupported, a.Kind)
	}
}

// ProxyID returns the registered id of p.
func (d *Deployment) ProxyID(p Proxy) (uint32, error) {
	id, ok := d.ProxyIDs[p]
	if !ok {
		return 0, fmt.Errorf("%w: proxy %s is not registered", IssueWrongInput, p)
	}
	return id, nil
}
