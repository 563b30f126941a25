package helper

import (
	"github.com/shopspring/decimal"
)

// TrimDecimal 将 decimal 四舍五入为两位小数的字符串
// 余额与金额统一走这里格式化，避免各处散落的 StringFixed 调用
func TrimDecimal(val decimal.Decimal) string {
	return val.StringFixed(2)
}
