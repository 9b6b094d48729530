package assistant

import (
	"context"
	"fmt"
	"strings"

	"CircleLayer-Assistant/internal/catalog"
	xerrors "CircleLayer-Assistant/internal/errors"
)

func catalogFailure(section string, err error) Response {
	return Response{Text: fmt.Sprintf("❌ Error fetching %s info: %s", section, xerrors.Describe(err)), Kind: KindError}
}

func (a *Assistant) handleStaking(ctx context.Context, _ request) (Response, error) {
	info, err := a.catalog.Staking(ctx)
	if err != nil {
		return catalogFailure("staking", err), nil
	}

	var b strings.Builder
	b.WriteString("🥩 **Staking Opportunities**\n\n")
	if info.TotalStaked > 0 {
		fmt.Fprintf(&b, "**Your Staking:**\n• **Staked:** %s CLAYER\n• **Rewards:** %s CLAYER\n• **APY:** %s\n\n",
			formatNumber(info.TotalStaked), formatNumber(info.Rewards), info.APY)
	}
	b.WriteString("**Available Staking Pools:**\n\n")
	for i, pool := range info.Pools {
		fmt.Fprintf(&b, "**%d. %s**\n", i+1, pool.Name)
		fmt.Fprintf(&b, "   • **APY:** %s\n", pool.APY)
		fmt.Fprintf(&b, "   • **TVL:** %s\n", pool.TVL)
		fmt.Fprintf(&b, "   • **Min Stake:** %s CLAYER\n\n", pool.MinStake)
	}
	return Response{Text: b.String(), Kind: KindStaking, Data: info}, nil
}

func (a *Assistant) handleLiquidity(ctx context.Context, _ request) (Response, error) {
	pools, err := a.catalog.LiquidityPools(ctx)
	if err != nil {
		return catalogFailure("liquidity", err), nil
	}

	var b strings.Builder
	b.WriteString("💧 **Liquidity Pools**\n\n")
	for i, pool := range pools {
		fmt.Fprintf(&b, "**%d. %s Pool**\n", i+1, pool.Name)
		fmt.Fprintf(&b, "   • **APY:** %s\n", pool.APY)
		fmt.Fprintf(&b, "   • **TVL:** $%s\n", pool.TVL)
		fmt.Fprintf(&b, "   • **24h Volume:** $%s\n", pool.Volume24h)
		fmt.Fprintf(&b, "   • **Fees:** %s\n", pool.Fees)
		fmt.Fprintf(&b, "   • **Your Share:** %s\n\n", pool.PoolShare)
	}
	b.WriteString("**Benefits of Providing Liquidity:**\n• Earn trading fees from swaps\n• Receive additional farming rewards\n• Support the ecosystem\n\n*Start with smaller amounts to understand impermanent loss*")
	return Response{Text: b.String(), Kind: KindLiquidity, Data: pools}, nil
}

func (a *Assistant) handleFarming(ctx context.Context, _ request) (Response, error) {
	farms, err := a.catalog.Farms(ctx)
	if err != nil {
		return catalogFailure("farming", err), nil
	}

	var b strings.Builder
	b.WriteString("🌾 **Yield Farming Opportunities**\n\n")
	for i, farm := range farms {
		fmt.Fprintf(&b, "**%d. %s**\n", i+1, farm.Name)
		fmt.Fprintf(&b, "   • **Token:** %s\n", farm.Token)
		fmt.Fprintf(&b, "   • **APY:** %s\n", farm.APY)
		fmt.Fprintf(&b, "   • **TVL:** $%s\n", farm.TVL)
		fmt.Fprintf(&b, "   • **Rewards:** %s\n", farm.Rewards)
		fmt.Fprintf(&b, "   • **Lock Period:** %s\n", farm.LockPeriod)
		fmt.Fprintf(&b, "   • **Risk Level:** %s\n\n", farm.Risk)
	}
	b.WriteString("**⚠️ Farming Risks:**\n• Impermanent loss for LP tokens\n• Smart contract risks\n• Token price volatility\n\n*Higher APY usually means higher risk*")
	return Response{Text: b.String(), Kind: KindFarming, Data: farms}, nil
}

func (a *Assistant) handleLending(ctx context.Context, _ request) (Response, error) {
	info, err := a.catalog.Lending(ctx)
	if err != nil {
		return catalogFailure("lending", err), nil
	}

	var b strings.Builder
	b.WriteString("🏦 **Lending & Borrowing**\n\n")
	if info.TotalSupplied > 0 || info.TotalBorrowed > 0 {
		b.WriteString("**Your Position:**\n")
		fmt.Fprintf(&b, "• **Total Supplied:** %s CLAYER\n", formatNumber(info.TotalSupplied))
		fmt.Fprintf(&b, "• **Total Borrowed:** %s CLAYER\n", formatNumber(info.TotalBorrowed))
		fmt.Fprintf(&b, "• **Net APY:** %s\n", info.NetAPY)
		fmt.Fprintf(&b, "• **Health Factor:** %s\n\n", info.HealthFactor)
	}
	b.WriteString("**Available Markets:**\n\n")
	for i, m := range info.Markets {
		fmt.Fprintf(&b, "**%d. %s**\n", i+1, m.Asset)
		fmt.Fprintf(&b, "   • **Supply APY:** %s\n", m.SupplyAPY)
		fmt.Fprintf(&b, "   • **Borrow APY:** %s\n", m.BorrowAPY)
		fmt.Fprintf(&b, "   • **Utilization:** %s\n", m.Utilization)
		fmt.Fprintf(&b, "   • **Collateral Factor:** %s\n", m.CollateralFactor)
		fmt.Fprintf(&b, "   • **Total Supplied:** %s\n\n", m.TotalSupplied)
	}
	return Response{Text: b.String(), Kind: KindLending, Data: info}, nil
}

func (a *Assistant) handleGovernance(ctx context.Context, _ request) (Response, error) {
	info, err := a.catalog.Governance(ctx)
	if err != nil {
		return catalogFailure("governance", err), nil
	}

	var b strings.Builder
	b.WriteString("🗳️ **Governance & Voting**\n\n")
	fmt.Fprintf(&b, "**Your Voting Power:** %s CLAYER\n", formatNumber(info.VotingPower))
	fmt.Fprintf(&b, "**Active Proposals:** %d\n\n", info.ActiveProposals)
	b.WriteString("**Current Proposals:**\n\n")
	for _, p := range info.Proposals {
		fmt.Fprintf(&b, "**%s. %s**\n", p.ID, p.Title)
		fmt.Fprintf(&b, "   • **Status:** %s\n", p.Status)
		fmt.Fprintf(&b, "   • **End Date:** %s\n", p.EndDate)
		fmt.Fprintf(&b, "   • **For:** %s | **Against:** %s\n", p.ForVotes, p.AgainstVotes)
		fmt.Fprintf(&b, "   • %s\n\n", p.Description)
	}
	b.WriteString("**How to Participate:**\n• Stake CLAYER tokens to gain voting power\n• Review proposals carefully\n• Vote on important decisions\n• Shape the future of Circle Layer ecosystem")
	return Response{Text: b.String(), Kind: KindGovernance, Data: info}, nil
}

func (a *Assistant) handleDeFi(ctx context.Context, _ request) (Response, error) {
	protocols, err := a.catalog.Protocols(ctx)
	if err != nil {
		return catalogFailure("protocol", err), nil
	}

	var b strings.Builder
	b.WriteString("🏦 **DeFi Ecosystem on Circle Layer**\n\n")
	for i, p := range protocols {
		fmt.Fprintf(&b, "**%d. %s** (%s)\n", i+1, p.Name, p.Category)
		fmt.Fprintf(&b, "   💰 **TVL:** $%sM\n", formatNumber(p.TVL))
		fmt.Fprintf(&b, "   📊 **APY:** %s\n", p.APY)
		fmt.Fprintf(&b, "   📝 %s\n", p.Description)
		fmt.Fprintf(&b, "   🔧 **Features:** %s\n\n", strings.Join(p.Features, ", "))
	}
	fmt.Fprintf(&b, "**Total Ecosystem TVL:** $%.1fM\n\n", catalog.TotalTVL(protocols))
	b.WriteString("**Getting Started:**\n• Start with small amounts\n• Understand the risks\n• DYOR (Do Your Own Research)\n• Consider diversification")
	return Response{Text: b.String(), Kind: KindProtocols, Data: protocols}, nil
}
