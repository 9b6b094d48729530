package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// NativeSymbol 是链上原生代币符号，金额未注明币种时使用。
const NativeSymbol = "CLAYER"

var (
	// 整个 0x 记号都作为候选地址，长度或字符不合法的由 ValidateAddress 拒绝，
	// 不能截成 40 位后当作另一个地址使用。
	addressPattern = regexp.MustCompile(`\b0x[0-9a-zA-Z]+`)
	amountPattern  = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(clayer|eth|btc|usdc|usdt)?`)
	symbolPattern  = regexp.MustCompile(`(?i)\b(clayer|eth|ethereum|btc|bitcoin|usdc|usdt|bnb)\b`)

	symbolAliases = map[string]string{
		"ETHEREUM": "ETH",
		"BITCOIN":  "BTC",
	}
)

// EntitySet 描述从消息中提取出的结构化参数。字段均为可选，
// 缺失本身有含义，例如转账缺少地址时需要追问。
type EntitySet struct {
	Address   string   `json:"address,omitempty"`
	Amount    float64  `json:"amount,omitempty"`
	HasAmount bool     `json:"-"`
	Currency  string   `json:"currency,omitempty"`
	Symbols   []string `json:"symbols,omitempty"`
}

// HasAddress 判断是否提取到了地址。
func (e EntitySet) HasAddress() bool {
	return e.Address != ""
}

// Map 将实体转换为通用字典，用于传给大模型作为上下文。
func (e EntitySet) Map() map[string]any {
	out := make(map[string]any)
	if e.HasAddress() {
		out["address"] = e.Address
	}
	if e.HasAmount {
		out["amount"] = e.Amount
		out["currency"] = e.Currency
	}
	if len(e.Symbols) > 0 {
		out["symbols"] = append([]string(nil), e.Symbols...)
	}
	return out
}

// Extract 从文本中提取地址、金额、币种与代币符号。
// 只取第一组金额与币种，多金额消息会被截断为第一组。
func Extract(text string) EntitySet {
	var entities EntitySet

	if match := addressPattern.FindString(text); match != "" {
		entities.Address = match
	}

	if groups := amountPattern.FindStringSubmatch(text); groups != nil {
		if amount, err := strconv.ParseFloat(strings.TrimSuffix(groups[1], "."), 64); err == nil {
			entities.Amount = amount
			entities.HasAmount = true
			entities.Currency = NativeSymbol
			if groups[2] != "" {
				entities.Currency = strings.ToUpper(groups[2])
			}
		}
	}

	seen := make(map[string]struct{})
	for _, raw := range symbolPattern.FindAllString(text, -1) {
		symbol := strings.ToUpper(raw)
		if canonical, ok := symbolAliases[symbol]; ok {
			symbol = canonical
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		entities.Symbols = append(entities.Symbols, symbol)
	}

	return entities
}
