package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule 将一个意图与若干匹配模式绑定。
type Rule struct {
	Intent   Intent
	Patterns []*regexp.Regexp
}

// RuleTable 是有序的规则集合，构建后不再修改。
// 表中靠前的规则在消息同时命中多个意图时优先。
type RuleTable struct {
	rules []Rule
}

// defaultPatterns 按优先级列出默认关键字。模式是子串匹配，宁可多召回。
var defaultPatterns = []struct {
	intent   Intent
	patterns []string
}{
	{Balance, []string{`balance`, `how much`, `funds`, `money`, `wallet`}},
	{Send, []string{`send`, `transfer`, `pay`, `give`}},
	{History, []string{`history`, `transactions`, `tx`, `past`, `previous`, `recent`}},
	{Gas, []string{`gas`, `fee`, `cost`, `estimate`}},
	{Network, []string{`network`, `chain`, `block`, `status`}},
	{Staking, []string{`stak`, `validator`, `delegate`, `rewards`}},
	{Liquidity, []string{`liquidity`, `pool`, `lp`, `provide`}},
	{Farming, []string{`farm`, `yield`, `harvest`}},
	{Lending, []string{`lend`, `borrow`, `supply`, `collateral`}},
	{Governance, []string{`governance`, `vote`, `proposal`, `dao`}},
	{Faucet, []string{`faucet`, `claim`, `free`, `testnet`, `get.*clayer`, `need.*clayer`}},
	{DeFi, []string{`defi`, `protocol`, `dapp`}},
	{Address, []string{`address`, `wallet`, `account`}},
	{Help, []string{`help`, `what can you do`, `commands`, `how`}},
}

// DefaultRules 构建默认规则表。
func DefaultRules() RuleTable {
	table, err := NewRuleTable(func(add func(Intent, ...string)) {
		for _, entry := range defaultPatterns {
			add(entry.intent, entry.patterns...)
		}
	})
	if err != nil {
		panic(err)
	}
	return table
}

// NewRuleTable 通过回调按顺序注册规则并编译模式。
// 模式一律按不区分大小写编译；General 不能出现在表中。
func NewRuleTable(build func(add func(Intent, ...string))) (RuleTable, error) {
	var (
		rules    []Rule
		firstErr error
	)
	build(func(in Intent, patterns ...string) {
		if firstErr != nil {
			return
		}
		if in == General || !in.Valid() {
			firstErr = fmt.Errorf("intent %q cannot be used in a rule table", in)
			return
		}
		rule := Rule{Intent: in}
		for _, pattern := range patterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				firstErr = fmt.Errorf("compile pattern %q for %s: %w", pattern, in, err)
				return
			}
			rule.Patterns = append(rule.Patterns, re)
		}
		rules = append(rules, rule)
	})
	if firstErr != nil {
		return RuleTable{}, firstErr
	}
	return RuleTable{rules: rules}, nil
}

// Rules 返回规则的副本。
func (t RuleTable) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Order 返回规则表中意图的顺序。
func (t RuleTable) Order() []Intent {
	out := make([]Intent, 0, len(t.rules))
	for _, rule := range t.rules {
		out = append(out, rule.Intent)
	}
	return out
}

// Classifier 按规则表顺序对消息进行首个命中分类。
type Classifier struct {
	table RuleTable
}

// NewClassifier 创建分类器。
func NewClassifier(table RuleTable) *Classifier {
	return &Classifier{table: table}
}

// Classify 返回消息对应的意图；没有规则命中时返回 General。
func (c *Classifier) Classify(text string) Intent {
	lower := strings.ToLower(text)
	for _, rule := range c.table.rules {
		for _, pattern := range rule.Patterns {
			if pattern.MatchString(lower) {
				return rule.Intent
			}
		}
	}
	return General
}
