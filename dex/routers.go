package dex

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/FabianBoni/Flashloab-arbitrage/config"
)

// Well-known BSC router addresses
var (
	PancakeSwapRouter = common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	BiswapRouter      = common.HexToAddress("0x3a6d8cA21D1CF76F653A67577FA0D27453350dD8")
	ApeSwapRouter     = common.HexToAddress("0xcF0feBd3f17CEf5b47b0cD257aCf6025c5BFf3b7")
)

// DefaultReadInterval is the pacing applied to chain reads when the config
// does not specify one.
const DefaultReadInterval = 2 * time.Second

var wellKnownRouters = map[string]common.Address{
	"pancakeswap": PancakeSwapRouter,
	"biswap":      BiswapRouter,
	"apeswap":     ApeSwapRouter,
}

// routerAddress resolves a config entry's address, falling back to the
// well-known address for recognized router names.
func routerAddress(rc config.RouterConfig) (common.Address, error) {
	if rc.Address != "" {
		return common.HexToAddress(rc.Address), nil
	}
	if addr, ok := wellKnownRouters[strings.ToLower(rc.Name)]; ok {
		return addr, nil
	}
	return common.Address{}, fmt.Errorf("router %q: no address configured and none known", rc.Name)
}

// FromConfig builds one Router venue per configured router entry.
func FromConfig(cfg *config.Config, client *ethclient.Client, logger *zap.Logger) ([]*Router, error) {
	interval := cfg.RouterReadInterval
	if interval <= 0 {
		interval = DefaultReadInterval
	}

	routers := make([]*Router, 0, len(cfg.Routers))
	for _, rc := range cfg.Routers {
		addr, err := routerAddress(rc)
		if err != nil {
			return nil, err
		}
		r, err := NewRouter(
			rc.Name,
			addr,
			client,
			interval,
			cfg.NetworkTimeout,
			cfg.MaxPriceRatio,
			logger,
		)
		if err != nil {
			return nil, err
		}
		routers = append(routers, r)
	}
	return routers, nil
}
