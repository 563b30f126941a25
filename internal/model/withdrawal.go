package model

import (
	"context"
	"time"

	"bingo-server/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Withdrawal 对应 withdrawals 表（提现申请队列）
// status: 1=pending 待打款 2=paid 已打款
// 申请时余额已扣，打款只改状态，不再动余额
type Withdrawal struct {
	ID        int64           `db:"id"`
	UserID    string          `db:"user_id"`
	Amount    decimal.Decimal `db:"amount"`
	Status    int8            `db:"status"`
	Operator  string          `db:"operator"`   // 打款操作员，pending 时为空
	TraceID   string          `db:"trace_id"`
	CreatedAt int64           `db:"created_at"`
	UpdatedAt int64           `db:"updated_at"`
}

const (
	WithdrawalStatusPending int8 = 1
	WithdrawalStatusPaid    int8 = 2
)

// 状态码与字符串互转（对外接口用字符串，库里存数值）
func WithdrawalStatusToCode(s string) int8 {
	switch s {
	case "pending":
		return WithdrawalStatusPending
	case "paid":
		return WithdrawalStatusPaid
	}
	return 0
}

func WithdrawalCodeToStatus(c int8) string {
	switch c {
	case WithdrawalStatusPending:
		return "pending"
	case WithdrawalStatusPaid:
		return "paid"
	}
	return "unknown"
}

// Insert 插入一条提现申请（状态默认 pending）
func (w *Withdrawal) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	w.Status = WithdrawalStatusPending
	w.CreatedAt = now
	w.UpdatedAt = now

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "INSERT INTO withdrawals (user_id, amount, status, operator, trace_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{w.UserID, w.Amount, w.Status, w.Operator, w.TraceID, now, now}

	result, err := exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	id, _ := result.LastInsertId()
	w.ID = id
	return nil
}

// ListWithdrawalsByStatus 按状态分页查询提现申请（管理后台用）
func ListWithdrawalsByStatus(ctx context.Context, db *sqlx.DB, status int8, offset, limit uint) ([]Withdrawal, error) {
	var list []Withdrawal
	err := common.SelectAllCtx(ctx, &list, common.QueryArg{
		Db:     db,
		Table:  "withdrawals",
		Fields: common.EnumFields(Withdrawal{}),
		Ex:     []g.Expression{g.C("status").Eq(status)},
		Order:  []exp.OrderedExpression{g.C("id").Asc()},
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// MarkWithdrawalPaid 条件更新：pending -> paid，返回是否真的更新了。
// 两个管理员同时点打款时只有一个返回 true
func MarkWithdrawalPaid(ctx context.Context, exec sqlx.ExtContext, id int64, operator string) (bool, error) {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE withdrawals SET status = ?, operator = ?, updated_at = ? WHERE id = ? AND status = ?"
	args := []interface{}{WithdrawalStatusPaid, operator, now, id, WithdrawalStatusPending}

	result, err := exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SumPendingWithdrawals 待打款总额（指标上报用）
func SumPendingWithdrawals(ctx context.Context, db *sqlx.DB) (float64, error) {
	return common.SumCtx(ctx, db, "withdrawals", "amount",
		g.C("status").Eq(WithdrawalStatusPending))
}
