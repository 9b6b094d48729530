// Package provider builds ledger clients from the chain definitions file and
// the ledger section of the configuration.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"CircleLayer-Assistant/internal/config"
	"CircleLayer-Assistant/internal/ledger"
	"CircleLayer-Assistant/internal/ledger/ethereum"
	"CircleLayer-Assistant/internal/ledger/faucet"
)

// Chain is a registered ledger client plus its display metadata.
type Chain struct {
	Name        string
	Client      ledger.Client
	ExplorerURL string
	Description string
}

// Registry manages a set of chain clients keyed by human readable names.
type Registry struct {
	defaultChain string
	chains       map[string]Chain
}

// NewRegistry loads chain definitions and instantiates concrete clients. The
// wallet key from the configuration is shared by every chain.
func NewRegistry(ctx context.Context, cfg config.LedgerConfig) (*Registry, error) {
	defs, err := ledger.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, err
	}

	if len(defs.Chains) == 0 && strings.TrimSpace(cfg.RPCURL) != "" {
		defs.Chains["default"] = ledger.ChainDefinition{Type: "evm", RPCURL: cfg.RPCURL}
		if cfg.DefaultChain == "" {
			cfg.DefaultChain = "default"
		}
	}
	if len(defs.Chains) == 0 {
		return nil, errors.New("未配置任何链的 RPC 端点")
	}

	r := &Registry{chains: make(map[string]Chain, len(defs.Chains))}
	for name, def := range defs.Chains {
		chain, err := buildChain(ctx, name, def, cfg)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.chains[name] = chain
	}

	r.defaultChain = cfg.DefaultChain
	if r.defaultChain == "" {
		r.defaultChain = r.Chains()[0]
	}
	if _, ok := r.chains[r.defaultChain]; !ok {
		r.Close()
		return nil, fmt.Errorf("默认链 %s 未在配置中找到", r.defaultChain)
	}
	return r, nil
}

func buildChain(ctx context.Context, name string, def ledger.ChainDefinition, cfg config.LedgerConfig) (Chain, error) {
	chainType := strings.ToLower(strings.TrimSpace(def.Type))
	if chainType == "" {
		chainType = "evm"
	}
	if chainType != "evm" {
		return Chain{}, fmt.Errorf("链 %s 使用了不支持的类型 %s", name, def.Type)
	}

	faucetURL := firstNonEmpty(def.FaucetURL, cfg.FaucetURL)
	var dispenser ledger.Faucet
	if faucetURL != "" {
		fc, err := faucet.New(faucet.Config{BaseURL: faucetURL, Timeout: cfg.Timeout()})
		if err != nil {
			return Chain{}, fmt.Errorf("初始化链 %s 的水龙头失败: %w", name, err)
		}
		dispenser = fc
	}

	scanDepth := def.ScanDepth
	if scanDepth <= 0 {
		scanDepth = cfg.ScanDepth
	}
	client, err := ethereum.NewClient(ctx, ethereum.Config{
		Name:       name,
		RPCURL:     def.RPCURL,
		PrivateKey: cfg.PrivateKey,
		ScanDepth:  scanDepth,
		Faucet:     dispenser,
	})
	if err != nil {
		return Chain{}, fmt.Errorf("初始化链 %s 失败: %w", name, err)
	}

	return Chain{
		Name:        name,
		Client:      client,
		ExplorerURL: strings.TrimRight(firstNonEmpty(def.ExplorerURL, cfg.ExplorerURL), "/"),
		Description: def.Description,
	}, nil
}

// Default returns the chain configured as default.
func (r *Registry) Default() (Chain, error) {
	if r == nil {
		return Chain{}, errors.New("未初始化的链客户端注册表")
	}
	chain, ok := r.chains[r.defaultChain]
	if !ok {
		return Chain{}, fmt.Errorf("默认链 %s 未在注册表中", r.defaultChain)
	}
	return chain, nil
}

// Chain returns the chain identified by name.
func (r *Registry) Chain(name string) (Chain, bool) {
	if r == nil {
		return Chain{}, false
	}
	chain, ok := r.chains[name]
	return chain, ok
}

// Chains returns the registered chain names in sorted order.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, chain := range r.chains {
		if chain.Client != nil {
			chain.Client.Close()
		}
		delete(r.chains, name)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
