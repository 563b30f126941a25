// Package matcher 从自由文本的支付通知里抽取参考号与金额。
// 两个抽取函数都是纯函数：同一段文本永远给出同一结果，无任何副作用。
// 歧义处理：最左优先，不做多候选打分。
package matcher

import (
	"strings"

	"github.com/shopspring/decimal"
)

// 参考号长度限制（短信网关的参考号通常 6~12 位字母数字）
const (
	refMinLen = 6
	refMaxLen = 12
)

// 金额关键词。通知文本里金额总是跟在某个货币/金额词后面，
// 不带关键词的裸数字（手机号、参考号里的数字段）一律不认。
var amountKeywords = map[string]struct{}{
	"amount": {},
	"amt":    {},
	"amnt":   {},
	"paid":   {},
	"ksh":    {},
	"kes":    {},
	"etb":    {},
	"birr":   {},
	"ngn":    {},
	"usd":    {},
	"rs":     {},
	"inr":    {},
}

// ExtractReferenceCode 返回文本中第一个长度在 6~12 之间的连续字母数字段，
// 统一大写。超长段整段跳过，不截取。没有合格段时 ok=false。
func ExtractReferenceCode(text string) (string, bool) {
	runStart := -1
	for i := 0; i <= len(text); i++ {
		if i < len(text) && isAlnum(text[i]) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			if n := i - runStart; n >= refMinLen && n <= refMaxLen {
				return strings.ToUpper(text[runStart:i]), true
			}
			runStart = -1
		}
	}
	return "", false
}

// ExtractAmount 返回第一个金额关键词之后的第一个十进制数，
// 千分位分隔符去掉后按 decimal 解析。找不到关键词或其后没有数字时 ok=false。
func ExtractAmount(text string) (decimal.Decimal, bool) {
	tokens := splitTokens(text)
	for i, tok := range tokens {
		if _, hit := amountKeywords[strings.ToLower(tok)]; !hit {
			continue
		}
		for _, cand := range tokens[i+1:] {
			if d, ok := parseAmountToken(cand); ok {
				return d, true
			}
		}
		// 最左关键词之后没有数字：不再尝试后面的关键词
		return decimal.Zero, false
	}
	return decimal.Zero, false
}

// splitTokens 按非 [字母 数字 . ,] 切分，数字里的小数点和千分位留在 token 内
func splitTokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return false
		case r == '.' || r == ',':
			return false
		}
		return true
	})
}

// parseAmountToken 解析单个 token 为金额：剥掉首尾标点、去千分位，
// 必须以数字开头（"ABC123" 这种参考号不算金额）。
func parseAmountToken(tok string) (decimal.Decimal, bool) {
	tok = strings.Trim(tok, ".,")
	if tok == "" || tok[0] < '0' || tok[0] > '9' {
		return decimal.Zero, false
	}
	tok = strings.ReplaceAll(tok, ",", "")
	d, err := decimal.NewFromString(tok)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
