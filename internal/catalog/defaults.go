package catalog

// Defaults returns the built-in demonstration tables. Each call returns fresh
// slices so callers may modify the result.
func Defaults() Snapshot {
	return Snapshot{
		Staking: Staking{
			TotalStaked: 1250.45,
			Rewards:     45.67,
			APY:         "15.7%",
			Pools: []StakingPool{
				{Name: "CLAYER Staking Pool", APY: "15.7%", TVL: "2.5M CLAYER", MinStake: "100"},
				{Name: "CLAYER-ETH LP", APY: "25.3%", TVL: "1.2M CLAYER", MinStake: "50"},
				{Name: "Validator Staking", APY: "12.1%", TVL: "5.8M CLAYER", MinStake: "1000"},
			},
		},
		LiquidityPools: []LiquidityPool{
			{Name: "CLAYER/ETH", TVL: "1.2M", APY: "25.3%", Volume24h: "45.2K", Fees: "0.3%", UserLiquidity: "0", PoolShare: "0%"},
			{Name: "CLAYER/USDC", TVL: "850K", APY: "18.7%", Volume24h: "32.1K", Fees: "0.3%", UserLiquidity: "0", PoolShare: "0%"},
			{Name: "CLAYER/BTC", TVL: "650K", APY: "22.1%", Volume24h: "28.5K", Fees: "0.3%", UserLiquidity: "0", PoolShare: "0%"},
		},
		Farms: []Farm{
			{Name: "CLAYER Yield Farm", Token: "CLAYER", APY: "45.2%", TVL: "3.2M", Rewards: "CLAYER + Protocol Tokens", LockPeriod: "None", Risk: "Low"},
			{Name: "LP Token Farm", Token: "CLAYER-ETH LP", APY: "67.8%", TVL: "1.8M", Rewards: "CLAYER + Bonus Tokens", LockPeriod: "30 days", Risk: "Medium"},
			{Name: "High Yield Farm", Token: "CLAYER-USDC LP", APY: "89.5%", TVL: "950K", Rewards: "Multiple Tokens", LockPeriod: "90 days", Risk: "High"},
		},
		Lending: Lending{
			NetAPY:       "0%",
			HealthFactor: "N/A",
			Markets: []Market{
				{Asset: "CLAYER", SupplyAPY: "8.2%", BorrowAPY: "12.5%", Utilization: "65%", TotalSupplied: "2.1M", TotalBorrowed: "1.4M", CollateralFactor: "75%"},
				{Asset: "ETH", SupplyAPY: "5.7%", BorrowAPY: "9.8%", Utilization: "58%", TotalSupplied: "850", TotalBorrowed: "493", CollateralFactor: "80%"},
				{Asset: "USDC", SupplyAPY: "4.1%", BorrowAPY: "7.2%", Utilization: "72%", TotalSupplied: "1.8M", TotalBorrowed: "1.3M", CollateralFactor: "85%"},
			},
		},
		Governance: Governance{
			ActiveProposals: 3,
			Proposals: []Proposal{
				{ID: "001", Title: "Increase Staking Rewards by 2%", Status: "Active", EndDate: "2025-08-30", ForVotes: "2.5M", AgainstVotes: "450K", Description: "Proposal to increase staking rewards to attract more validators"},
				{ID: "002", Title: "Add New Liquidity Pool: CLAYER/BNB", Status: "Active", EndDate: "2025-09-05", ForVotes: "1.8M", AgainstVotes: "320K", Description: "Create a new liquidity pool to expand cross-chain opportunities"},
				{ID: "003", Title: "Reduce Transaction Fees", Status: "Pending", EndDate: "2025-09-10", ForVotes: "0", AgainstVotes: "0", Description: "Lower gas fees to improve user experience"},
			},
		},
		Protocols: []Protocol{
			{Name: "Kite DEX", TVL: 4.2, APY: "15.8%", Description: "Advanced AMM DEX with concentrated liquidity", Category: "Exchange", Features: []string{"Spot Trading", "Limit Orders", "LP Farming"}},
			{Name: "Kite Lending", TVL: 2.8, APY: "12.3%", Description: "Overcollateralized lending and borrowing protocol", Category: "Lending", Features: []string{"Lending", "Borrowing", "Flash Loans"}},
			{Name: "Kite Staking", TVL: 8.1, APY: "18.7%", Description: "Native KITE staking with validator rewards", Category: "Staking", Features: []string{"Validator Staking", "Delegation", "Governance"}},
			{Name: "Kite Yield", TVL: 3.5, APY: "35.2%", Description: "Automated yield farming strategies", Category: "Yield Farming", Features: []string{"Auto-compounding", "Strategy Vaults", "Multi-token Rewards"}},
			{Name: "Kite Insurance", TVL: 1.2, APY: "8.5%", Description: "Decentralized insurance for DeFi protocols", Category: "Insurance", Features: []string{"Coverage Pools", "Claims", "Risk Assessment"}},
		},
	}
}
