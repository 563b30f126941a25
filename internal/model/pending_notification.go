package model

import (
	"context"
	"time"

	"bingo-server/common"
	"bingo-server/common/logger"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PendingNotification 对应 pending_notifications 表
// 一条未匹配的支付通知：参考号 + 金额 + 原文。由对账流程按
// (ref_code, amount) 精确匹配后一次性消费（删除）。
// 唯一键: (ref_code, amount)
type PendingNotification struct {
	ID        int64           `db:"id"`
	RefCode   string          `db:"ref_code"`   // 参考号（已统一大写）
	Amount    decimal.Decimal `db:"amount"`     // 金额 DECIMAL(18,2)
	RawText   string          `db:"raw_text"`   // 通知原文（排障用）
	CreatedAt int64           `db:"created_at"` // 创建时间（13位毫秒时间戳）
}

// Insert 插入一条待匹配通知
// 同一 (ref_code, amount) 重复入库时返回唯一键冲突，由调用方按幂等处理
func (p *PendingNotification) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	p.CreatedAt = now

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := "INSERT INTO pending_notifications (ref_code, amount, raw_text, created_at) VALUES (?, ?, ?, ?)"
	args := []interface{}{p.RefCode, p.Amount, p.RawText, now}

	result, err := exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	id, _ := result.LastInsertId()
	p.ID = id
	return nil
}

// GetPendingNotificationForUpdate 按 (ref_code, amount) 查询待匹配通知（加锁）
// 必须在事务中调用，锁住的行随后由 ConsumePendingNotification 删除
func GetPendingNotificationForUpdate(ctx context.Context, exec sqlx.ExtContext, refCode string, amount decimal.Decimal) (*PendingNotification, error) {
	query := `SELECT id, ref_code, amount, raw_text, created_at
	          FROM pending_notifications
	          WHERE ref_code = ? AND amount = ?
	          FOR UPDATE`

	var p PendingNotification
	err := sqlx.GetContext(ctx, exec, &p, query, refCode, amount)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ConsumePendingNotification 条件删除一条待匹配通知，返回是否真的删掉了。
// 按主键删并检查 RowsAffected：两个并发对账拿到同一条记录时，
// 只有先提交的删除返回 1，后到的返回 0，据此实现至多一次消费。
func ConsumePendingNotification(ctx context.Context, exec sqlx.ExtContext, id int64) (bool, error) {
	sqlStr := "DELETE FROM pending_notifications WHERE id = ?"

	result, err := exec.ExecContext(ctx, sqlStr, id)
	if err != nil {
		logger.Error("consume pending notification failed",
			zap.Int64("id", id),
			zap.Error(err))
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListPendingNotifications 按创建时间倒序分页查询（管理后台用）
func ListPendingNotifications(ctx context.Context, db *sqlx.DB, offset, limit uint) ([]PendingNotification, error) {
	var list []PendingNotification
	err := common.SelectAllCtx(ctx, &list, common.QueryArg{
		Db:     db,
		Table:  "pending_notifications",
		Fields: common.EnumFields(PendingNotification{}),
		Order:  []exp.OrderedExpression{g.C("created_at").Desc()},
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// PurgePendingNotificationsBefore 清理早于 cutoff 的过期通知，返回删除行数
func PurgePendingNotificationsBefore(ctx context.Context, db *sqlx.DB, cutoff time.Time) (int64, error) {
	result, err := common.DeleteCtx(ctx, db, "pending_notifications",
		g.C("created_at").Lt(cutoff.UnixMilli()))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountPendingNotifications 当前积压数量（指标上报用）
func CountPendingNotifications(ctx context.Context, db *sqlx.DB) (int64, error) {
	return common.CountCtx(ctx, db, "pending_notifications")
}
