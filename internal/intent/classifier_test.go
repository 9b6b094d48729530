package intent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestClassifyDefaultTable(t *testing.T) {
	classifier := NewClassifier(DefaultRules())

	cases := []struct {
		text string
		want Intent
	}{
		{"What's my balance?", Balance},
		{"Send 1.5 CLAYER to 0x742d35Cc6634C0532925a3b8D1e7e98a8A16D7c9", Send},
		{"Transaction history", History},
		{"Current gas fees", Gas},
		{"Network status", Network},
		{"Show staking options", Staking},
		{"Liquidity pools", Liquidity},
		{"Yield farming", Farming},
		{"Lending markets", Lending},
		{"Governance proposals", Governance},
		{"Claim faucet", Faucet},
		{"I need some CLAYER please", Faucet},
		{"Show DeFi protocols", DeFi},
		{"Show my address", Address},
		{"What can you do?", Help},
		{"Hello there", General},
		{"", General},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			require.Equal(t, tc.want, classifier.Classify(tc.text))
		})
	}
}

func TestClassifyTableOrderBreaksTies(t *testing.T) {
	classifier := NewClassifier(DefaultRules())

	require.Equal(t, Balance, classifier.Classify("send it after you check my balance"))
	require.Equal(t, Balance, classifier.Classify("check my balance and then send"))
	// "wallet" belongs to both balance and address; balance is earlier.
	require.Equal(t, Balance, classifier.Classify("show my wallet"))
	// "help" contains "lp", so the liquidity rule catches it first.
	require.Equal(t, Liquidity, classifier.Classify("help"))
	// "status" is a network keyword and network outranks faucet.
	require.Equal(t, Network, classifier.Classify("faucet status"))
	// "show" contains "how".
	require.Equal(t, Help, classifier.Classify("show me something"))
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	classifier := NewClassifier(DefaultRules())
	require.Equal(t, Staking, classifier.Classify("STAKING REWARDS"))
	require.Equal(t, Faucet, classifier.Classify("Get me some CLAYER"))
}

func TestDefaultRulesOrder(t *testing.T) {
	want := []Intent{
		Balance, Send, History, Gas, Network, Staking, Liquidity, Farming,
		Lending, Governance, Faucet, DeFi, Address, Help,
	}
	if diff := cmp.Diff(want, DefaultRules().Order()); diff != "" {
		t.Fatalf("rule order mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRuleTableRejectsInvalidInput(t *testing.T) {
	_, err := NewRuleTable(func(add func(Intent, ...string)) {
		add(General, "anything")
	})
	require.Error(t, err)

	_, err = NewRuleTable(func(add func(Intent, ...string)) {
		add(Balance, "(unclosed")
	})
	require.Error(t, err)
}

func TestCustomRuleTable(t *testing.T) {
	table, err := NewRuleTable(func(add func(Intent, ...string)) {
		add(Help, "help")
		add(Liquidity, "pool")
	})
	require.NoError(t, err)

	classifier := NewClassifier(table)
	require.Equal(t, Help, classifier.Classify("help with a pool"))
	require.Equal(t, General, classifier.Classify("balance"))
}
