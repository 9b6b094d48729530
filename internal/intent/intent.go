package intent

// Intent 表示一条用户消息被归类到的动作类别。
type Intent string

const (
	Balance    Intent = "balance"
	Send       Intent = "send"
	History    Intent = "history"
	Gas        Intent = "gas"
	Network    Intent = "network"
	Staking    Intent = "staking"
	Liquidity  Intent = "liquidity"
	Farming    Intent = "farming"
	Lending    Intent = "lending"
	Governance Intent = "governance"
	Faucet     Intent = "faucet"
	DeFi       Intent = "defi"
	Address    Intent = "address"
	Help       Intent = "help"
	General    Intent = "general"
)

// All 返回完整的意图集合，顺序与默认规则表一致，General 位于末尾。
func All() []Intent {
	return []Intent{
		Balance, Send, History, Gas, Network, Staking, Liquidity, Farming,
		Lending, Governance, Faucet, DeFi, Address, Help, General,
	}
}

// Valid 判断意图是否属于已知集合。
func (i Intent) Valid() bool {
	for _, candidate := range All() {
		if candidate == i {
			return true
		}
	}
	return false
}

// String 实现 fmt.Stringer。
func (i Intent) String() string {
	return string(i)
}
