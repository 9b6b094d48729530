// Package catalog provides the DeFi product tables (staking pools, liquidity
// pools, farms, lending markets, governance proposals and protocols) that the
// assistant renders. The built-in tables can be overridden by a YAML file.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// StakingPool describes one staking venue.
type StakingPool struct {
	Name     string `yaml:"name" json:"name"`
	APY      string `yaml:"apy" json:"apy"`
	TVL      string `yaml:"tvl" json:"tvl"`
	MinStake string `yaml:"min_stake" json:"minStake"`
}

// Staking holds the wallet's staking position and the available pools.
type Staking struct {
	TotalStaked float64       `yaml:"total_staked" json:"totalStaked"`
	Rewards     float64       `yaml:"rewards" json:"rewards"`
	APY         string        `yaml:"apy" json:"apy"`
	Pools       []StakingPool `yaml:"pools" json:"stakingPools"`
}

// LiquidityPool describes an AMM pool.
type LiquidityPool struct {
	Name          string `yaml:"name" json:"name"`
	TVL           string `yaml:"tvl" json:"tvl"`
	APY           string `yaml:"apy" json:"apy"`
	Volume24h     string `yaml:"volume_24h" json:"volume24h"`
	Fees          string `yaml:"fees" json:"fees"`
	UserLiquidity string `yaml:"user_liquidity" json:"userLiquidity"`
	PoolShare     string `yaml:"pool_share" json:"poolShare"`
}

// Farm describes a yield farm.
type Farm struct {
	Name       string `yaml:"name" json:"name"`
	Token      string `yaml:"token" json:"token"`
	APY        string `yaml:"apy" json:"apy"`
	TVL        string `yaml:"tvl" json:"tvl"`
	Rewards    string `yaml:"rewards" json:"rewards"`
	LockPeriod string `yaml:"lock_period" json:"lockPeriod"`
	Risk       string `yaml:"risk" json:"risk"`
}

// Market describes a lending market.
type Market struct {
	Asset            string `yaml:"asset" json:"asset"`
	SupplyAPY        string `yaml:"supply_apy" json:"supplyApy"`
	BorrowAPY        string `yaml:"borrow_apy" json:"borrowApy"`
	Utilization      string `yaml:"utilization" json:"utilization"`
	TotalSupplied    string `yaml:"total_supplied" json:"totalSupplied"`
	TotalBorrowed    string `yaml:"total_borrowed" json:"totalBorrowed"`
	CollateralFactor string `yaml:"collateral_factor" json:"collateralFactor"`
}

// Lending holds the wallet's lending position and the markets.
type Lending struct {
	TotalSupplied float64  `yaml:"total_supplied" json:"totalSupplied"`
	TotalBorrowed float64  `yaml:"total_borrowed" json:"totalBorrowed"`
	NetAPY        string   `yaml:"net_apy" json:"netApy"`
	HealthFactor  string   `yaml:"health_factor" json:"healthFactor"`
	Markets       []Market `yaml:"markets" json:"markets"`
}

// Proposal is a governance proposal.
type Proposal struct {
	ID           string `yaml:"id" json:"id"`
	Title        string `yaml:"title" json:"title"`
	Status       string `yaml:"status" json:"status"`
	EndDate      string `yaml:"end_date" json:"endDate"`
	ForVotes     string `yaml:"for_votes" json:"forVotes"`
	AgainstVotes string `yaml:"against_votes" json:"againstVotes"`
	Description  string `yaml:"description" json:"description"`
}

// Governance holds voting power and proposals.
type Governance struct {
	VotingPower     float64    `yaml:"voting_power" json:"votingPower"`
	ActiveProposals int        `yaml:"active_proposals" json:"activeProposals"`
	Proposals       []Proposal `yaml:"proposals" json:"proposals"`
}

// Protocol is an entry of the ecosystem directory. TVL is expressed in
// millions of USD.
type Protocol struct {
	Name        string   `yaml:"name" json:"name"`
	TVL         float64  `yaml:"tvl_millions" json:"tvl"`
	APY         string   `yaml:"apy" json:"apy"`
	Description string   `yaml:"description" json:"description"`
	Category    string   `yaml:"category" json:"category"`
	Features    []string `yaml:"features" json:"features"`
}

// Snapshot is an immutable view of every table.
type Snapshot struct {
	Staking        Staking         `yaml:"staking"`
	LiquidityPools []LiquidityPool `yaml:"liquidity_pools"`
	Farms          []Farm          `yaml:"farms"`
	Lending        Lending         `yaml:"lending"`
	Governance     Governance      `yaml:"governance"`
	Protocols      []Protocol      `yaml:"protocols"`
}

// Provider exposes the catalog tables to the assistant.
type Provider interface {
	Staking(ctx context.Context) (Staking, error)
	LiquidityPools(ctx context.Context) ([]LiquidityPool, error)
	Farms(ctx context.Context) ([]Farm, error)
	Lending(ctx context.Context) (Lending, error)
	Governance(ctx context.Context) (Governance, error)
	Protocols(ctx context.Context) ([]Protocol, error)
}

// Static serves a snapshot held in memory. Replace swaps the snapshot
// atomically so readers never observe a partially loaded catalog.
type Static struct {
	current atomic.Pointer[Snapshot]
}

// NewStatic creates a provider backed by snap.
func NewStatic(snap Snapshot) *Static {
	s := &Static{}
	s.Replace(snap)
	return s
}

// Replace installs a new snapshot.
func (s *Static) Replace(snap Snapshot) {
	s.current.Store(&snap)
}

// Snapshot returns the snapshot currently served.
func (s *Static) Snapshot() Snapshot {
	return *s.current.Load()
}

func (s *Static) Staking(context.Context) (Staking, error) {
	return s.current.Load().Staking, nil
}

func (s *Static) LiquidityPools(context.Context) ([]LiquidityPool, error) {
	return s.current.Load().LiquidityPools, nil
}

func (s *Static) Farms(context.Context) ([]Farm, error) {
	return s.current.Load().Farms, nil
}

func (s *Static) Lending(context.Context) (Lending, error) {
	return s.current.Load().Lending, nil
}

func (s *Static) Governance(context.Context) (Governance, error) {
	return s.current.Load().Governance, nil
}

func (s *Static) Protocols(context.Context) ([]Protocol, error) {
	return s.current.Load().Protocols, nil
}

// LoadFile reads a YAML override. Sections missing from the file keep the
// built-in defaults.
func LoadFile(path string) (Snapshot, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("读取目录文件失败: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog on top of the defaults.
func Parse(data []byte) (Snapshot, error) {
	snap := Defaults()
	var override Snapshot
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Snapshot{}, fmt.Errorf("解析目录文件失败: %w", err)
	}
	if override.Staking.Pools != nil || override.Staking.APY != "" {
		snap.Staking = override.Staking
	}
	if override.LiquidityPools != nil {
		snap.LiquidityPools = override.LiquidityPools
	}
	if override.Farms != nil {
		snap.Farms = override.Farms
	}
	if override.Lending.Markets != nil || override.Lending.NetAPY != "" {
		snap.Lending = override.Lending
	}
	if override.Governance.Proposals != nil {
		snap.Governance = override.Governance
	}
	if override.Protocols != nil {
		snap.Protocols = override.Protocols
	}
	return snap, nil
}

// TotalTVL sums the protocol TVL in millions.
func TotalTVL(protocols []Protocol) float64 {
	var total float64
	for _, p := range protocols {
		total += p.TVL
	}
	return total
}
