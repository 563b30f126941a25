package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second

	maxNotificationTextLen = 2048
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// -------- Join helpers --------

// JoinParsed 为解析后的加入本局入参（与控制器/服务层解耦）
type JoinParsed struct {
	PlayerId string `json:"player_id"`
	Name     string `json:"name"`
	CardIds  []int  `json:"card_ids"`
}

// ParseJoinFromJSON 解析 JSON 到 JoinParsed。失败返回 false 与错误消息。
func ParseJoinFromJSON(r io.Reader) (JoinParsed, bool, string) {
	var out JoinParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return JoinParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParseJoinFromForm 从表单读取字段，card_ids 为逗号分隔整数列表
func ParseJoinFromForm(ctx *beegocontext.Context) (JoinParsed, bool, string) {
	var out JoinParsed
	out.PlayerId = strings.TrimSpace(ctx.Input.Query("player_id"))
	out.Name = strings.TrimSpace(ctx.Input.Query("name"))

	raw := strings.TrimSpace(ctx.Input.Query("card_ids"))
	if raw != "" {
		for _, part := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return JoinParsed{}, false, "card_ids must be comma separated integers"
			}
			out.CardIds = append(out.CardIds, n)
		}
	}
	return out, true, ""
}

// ValidateJoin 对通用字段做二次校验（适用于 JSON 与 FORM）
func ValidateJoin(in *JoinParsed) (bool, string) {
	if strings.TrimSpace(in.PlayerId) == "" {
		return false, "player_id required"
	}
	if len(in.PlayerId) > 64 || len(in.Name) > 64 {
		return false, "invalid request"
	}
	// 一名玩家最多持有 8 张卡
	if len(in.CardIds) > 8 {
		return false, "too many card_ids"
	}
	for _, id := range in.CardIds {
		if id <= 0 {
			return false, "card_ids must be positive integers"
		}
	}
	return true, ""
}

// ParseAndValidateJoin 按 Content-Type 自动解析并做统一校验
func ParseAndValidateJoin(ctx *beegocontext.Context) (JoinParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseJoinFromJSON, ParseJoinFromForm)
	if !ok {
		return JoinParsed{}, false, msg
	}
	if ok, msg := ValidateJoin(&out); !ok {
		return JoinParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Amount helpers（充值声明金额 / 提现）--------

type AmountParsed struct {
	Amount string `json:"amount"`
}

func ParseAmountFromJSON(r io.Reader) (AmountParsed, bool, string) {
	var out AmountParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return AmountParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseAmountFromForm(ctx *beegocontext.Context) (AmountParsed, bool, string) {
	var out AmountParsed
	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	return out, true, ""
}

func ValidateAmount(in *AmountParsed) (bool, string) {
	in.Amount = strings.TrimSpace(in.Amount)
	if in.Amount == "" {
		return false, "amount required"
	}
	if len(in.Amount) > 32 {
		return false, "invalid request"
	}
	if !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	return true, ""
}

// ParseAndValidateAmount 按 Content-Type 自动解析并校验
func ParseAndValidateAmount(ctx *beegocontext.Context) (AmountParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseAmountFromJSON, ParseAmountFromForm)
	if !ok {
		return AmountParsed{}, false, msg
	}
	if ok, msg := ValidateAmount(&out); !ok {
		return AmountParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Text helpers（用户转发的对账文本 / 网关通知原文）--------

type TextParsed struct {
	Text string `json:"text"`
}

func ParseTextFromJSON(r io.Reader) (TextParsed, bool, string) {
	var out TextParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return TextParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseTextFromForm(ctx *beegocontext.Context) (TextParsed, bool, string) {
	var out TextParsed
	out.Text = ctx.Input.Query("text")
	return out, true, ""
}

func ValidateText(in *TextParsed) (bool, string) {
	if strings.TrimSpace(in.Text) == "" {
		return false, "text required"
	}
	if len(in.Text) > maxNotificationTextLen {
		return false, "text too long"
	}
	return true, ""
}

// ParseAndValidateText 按 Content-Type 自动解析并校验
func ParseAndValidateText(ctx *beegocontext.Context) (TextParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseTextFromJSON, ParseTextFromForm)
	if !ok {
		return TextParsed{}, false, msg
	}
	if ok, msg := ValidateText(&out); !ok {
		return TextParsed{}, false, msg
	}
	return out, true, ""
}

// -------- 提现打款 helpers --------

type MarkPaidParsed struct {
	WithdrawalId int64  `json:"withdrawal_id"`
	Operator     string `json:"operator"`
}

func ParseMarkPaidFromJSON(r io.Reader) (MarkPaidParsed, bool, string) {
	var out MarkPaidParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return MarkPaidParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseMarkPaidFromForm(ctx *beegocontext.Context) (MarkPaidParsed, bool, string) {
	var out MarkPaidParsed
	idStr := strings.TrimSpace(ctx.Input.Query("withdrawal_id"))
	if idStr != "" {
		if v, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			out.WithdrawalId = v
		}
	}
	out.Operator = strings.TrimSpace(ctx.Input.Query("operator"))
	return out, true, ""
}

func ValidateMarkPaid(in *MarkPaidParsed) (bool, string) {
	if in.WithdrawalId <= 0 {
		return false, "withdrawal_id required"
	}
	if len(in.Operator) > 64 {
		return false, "invalid request"
	}
	return true, ""
}

func ParseAndValidateMarkPaid(ctx *beegocontext.Context) (MarkPaidParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseMarkPaidFromJSON, ParseMarkPaidFromForm)
	if !ok {
		return MarkPaidParsed{}, false, msg
	}
	if ok, msg := ValidateMarkPaid(&out); !ok {
		return MarkPaidParsed{}, false, msg
	}
	return out, true, ""
}
