package dex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/FabianBoni/Flashloab-arbitrage/config"
)

func routersConfig(t *testing.T, routers ...config.RouterConfig) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Routers = routers
	require.NoError(t, cfg.Normalize())
	return cfg
}

func TestFromConfigResolvesWellKnownAddresses(t *testing.T) {
	cfg := routersConfig(t,
		config.RouterConfig{Name: "PancakeSwap"},
		config.RouterConfig{Name: "biswap"},
		config.RouterConfig{Name: "apeswap"},
	)

	routers, err := FromConfig(cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, routers, 3)

	assert.Equal(t, PancakeSwapRouter, routers[0].Address())
	assert.Equal(t, BiswapRouter, routers[1].Address())
	assert.Equal(t, ApeSwapRouter, routers[2].Address())
}

func TestFromConfigPrefersExplicitAddress(t *testing.T) {
	cfg := routersConfig(t, config.RouterConfig{
		Name:    "pancakeswap",
		Address: "0x000000000000000000000000000000000000dEaD",
	})

	routers, err := FromConfig(cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, routers, 1)
	assert.NotEqual(t, PancakeSwapRouter, routers[0].Address())
}

func TestFromConfigRejectsUnknownRouterWithoutAddress(t *testing.T) {
	cfg := routersConfig(t, config.RouterConfig{Name: "someswap"})

	_, err := FromConfig(cfg, nil, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "someswap")
}

func TestFromConfigDefaultsReadInterval(t *testing.T) {
	cfg := routersConfig(t, config.RouterConfig{Name: "biswap"})
	cfg.RouterReadInterval = 0

	routers, err := FromConfig(cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, routers, 1)
	assert.Equal(t, DefaultReadInterval, routers[0].ReadInterval())
}
