package model

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// WalletLedger 对应 wallet_ledger 表（追加式账本，只插不改）
// 说明：金额为非负；方向由 before_amount/after_amount 与 biz_type 推导
// biz_type: 1=deposit 充值 2=withdraw 提现 3=win 中奖派彩 4=adjust 后台调整
// 同时冗余 biz_type_str 便于查询
type WalletLedger struct {
	ID           int64           `db:"id"`
	UserID       string          `db:"user_id"`
	BizType      int             `db:"biz_type"`
	BizTypeStr   string          `db:"biz_type_str"`
	Amount       decimal.Decimal `db:"amount"`
	BeforeAmount decimal.Decimal `db:"before_amount"`
	AfterAmount  decimal.Decimal `db:"after_amount"`
	RefCode      string          `db:"ref_code"`      // 充值对应的支付参考号，其他类型可空
	RoundID      int64           `db:"round_id"`      // 中奖派彩对应的回合ID，其他类型为 0
	Remark       string          `db:"remark"`
	TraceID      string          `db:"trace_id"`
	CreatedAt    int64           `db:"created_at"`
}

const (
	BizTypeDeposit  = 1
	BizTypeWithdraw = 2
	BizTypeWin      = 3
	BizTypeAdjust   = 4
)

// Insert 新增一条账本记录（biz_type 数值码与字符串双写）
func (l *WalletLedger) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	code := l.BizType
	str := l.BizTypeStr
	if code == 0 && str != "" {
		switch strings.ToLower(str) {
		case "deposit":
			code = BizTypeDeposit
		case "withdraw":
			code = BizTypeWithdraw
		case "win":
			code = BizTypeWin
		case "adjust":
			code = BizTypeAdjust
		}
	}
	if str == "" && code != 0 {
		switch code {
		case BizTypeDeposit:
			str = "deposit"
		case BizTypeWithdraw:
			str = "withdraw"
		case BizTypeWin:
			str = "win"
		case BizTypeAdjust:
			str = "adjust"
		}
	}
	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "INSERT INTO wallet_ledger (user_id, biz_type, biz_type_str, amount, before_amount, after_amount, ref_code, round_id, remark, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{l.UserID, code, str, l.Amount, l.BeforeAmount, l.AfterAmount, l.RefCode, l.RoundID, l.Remark, l.TraceID, now}

	if _, err := exec.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, "insert wallet_ledger")
	}
	return nil
}

// ListLedgerByUser 按用户倒序查询账本（管理后台对账用）
func ListLedgerByUser(ctx context.Context, db *sqlx.DB, userID string, limit int) ([]WalletLedger, error) {
	sqlStr := "SELECT id, user_id, biz_type, biz_type_str, amount, before_amount, after_amount, ref_code, round_id, remark, trace_id, created_at FROM wallet_ledger WHERE user_id = ? ORDER BY id DESC LIMIT ?"

	var list []WalletLedger
	if err := db.SelectContext(ctx, &list, sqlStr, userID, limit); err != nil {
		return nil, errors.Wrap(err, "list wallet_ledger")
	}
	return list, nil
}
