package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bingo-server/common/helper"
	infmysql "bingo-server/internal/infra/mysql"
	"bingo-server/internal/model"

	decimal "github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found or already paid")
)

// WithdrawInput 提现申请参数
type WithdrawInput struct {
	UserID  string
	Amount  string
	TraceID string
}

// WithdrawOutput 提现申请结果
type WithdrawOutput struct {
	WithdrawalID int64
	RemainAmount string
}

type WithdrawService interface {
	// RequestWithdrawal 提现申请：事务内扣余额、记账、落提现单
	RequestWithdrawal(ctx context.Context, in WithdrawInput) (*WithdrawOutput, error)
	// ListWithdrawals 按状态分页查询（管理后台）
	ListWithdrawals(ctx context.Context, status string, offset, limit uint) ([]model.Withdrawal, error)
	// MarkPaid 管理员标记已打款
	MarkPaid(ctx context.Context, id int64, operator string) error
}

type withdrawService struct{}

func NewWithdrawService() WithdrawService { return &withdrawService{} }

// RequestWithdrawal 提现主流程：
// 申请时一次性扣掉余额，之后打款只改单据状态，余额不再变动。
// 余额不足直接拒绝，不产生任何落库。
func (s *withdrawService) RequestWithdrawal(ctx context.Context, in WithdrawInput) (*WithdrawOutput, error) {
	amtDec, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil || amtDec.LessThanOrEqual(decimal.Zero) {
		fmt.Printf("[Withdraw] 无效的提现金额: user_id=%s, amount=%s, trace_id=%s\n",
			in.UserID, in.Amount, in.TraceID)
		return nil, ErrInvalidAmount
	}

	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		fmt.Printf("[Withdraw] 开启事务失败: error=%v, user_id=%s, trace_id=%s\n",
			err, in.UserID, in.TraceID)
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	user, err := model.GetUserByUserIDForUpdate(txCtx, tx, in.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Status != 1 {
		return nil, errors.New("user disabled")
	}
	if user.Balance.Cmp(amtDec) < 0 {
		fmt.Printf("[Withdraw] 余额不足: user_id=%s, balance=%s, amount=%s, trace_id=%s\n",
			in.UserID, user.Balance.String(), amtDec.String(), in.TraceID)
		return nil, ErrInsufficientBalance
	}

	beforeDec := user.Balance
	afterDec := beforeDec.Sub(amtDec)

	if err := model.UpdateUserBalance(txCtx, tx, in.UserID, afterDec.Round(2)); err != nil {
		return nil, err
	}

	// 账本：提现扣款
	ledger := &model.WalletLedger{
		UserID:       in.UserID,
		BizType:      model.BizTypeWithdraw,
		BizTypeStr:   "withdraw",
		Amount:       amtDec.Round(2),
		BeforeAmount: beforeDec.Round(2),
		AfterAmount:  afterDec.Round(2),
		Remark:       "withdraw deduct",
		TraceID:      in.TraceID,
	}
	if err := ledger.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Withdraw] 写入账本失败: error=%v, user_id=%s, trace_id=%s\n",
			err, in.UserID, in.TraceID)
		return nil, err
	}

	// 提现单
	w := &model.Withdrawal{
		UserID:  in.UserID,
		Amount:  amtDec.Round(2),
		TraceID: in.TraceID,
	}
	if err := w.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Withdraw] 创建提现单失败: error=%v, user_id=%s, trace_id=%s\n",
			err, in.UserID, in.TraceID)
		return nil, err
	}

	// Outbox 事件（异步投递给打款侧）
	payload := map[string]any{
		"event":         "withdrawal_requested",
		"withdrawal_id": w.ID,
		"user_id":       in.UserID,
		"amount":        amtDec.Round(2).String(),
	}
	bizKey := fmt.Sprintf("withdraw:%d", w.ID)
	if err := model.CreateOutbox(txCtx, tx, model.TopicDepositEvent, bizKey, payload); err != nil {
		fmt.Printf("[Withdraw] 写入 Outbox 失败: error=%v, user_id=%s, trace_id=%s\n",
			err, in.UserID, in.TraceID)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Withdraw] 提交事务失败: error=%v, user_id=%s, trace_id=%s\n",
			err, in.UserID, in.TraceID)
		return nil, err
	}

	fmt.Printf("[Withdraw] 提现申请成功: withdrawal_id=%d, user_id=%s, amount=%s, remain=%s, trace_id=%s\n",
		w.ID, in.UserID, amtDec.String(), afterDec.String(), in.TraceID)

	return &WithdrawOutput{
		WithdrawalID: w.ID,
		RemainAmount: helper.TrimDecimal(afterDec),
	}, nil
}

func (s *withdrawService) ListWithdrawals(ctx context.Context, status string, offset, limit uint) ([]model.Withdrawal, error) {
	code := model.WithdrawalStatusToCode(status)
	if code == 0 {
		return nil, fmt.Errorf("unknown withdrawal status: %s", status)
	}
	if limit == 0 || limit > 200 {
		limit = 50
	}
	return model.ListWithdrawalsByStatus(ctx, infmysql.SQLX(), code, offset, limit)
}

// MarkPaid 打款确认：pending -> paid 的条件更新，已打款的单子报错
func (s *withdrawService) MarkPaid(ctx context.Context, id int64, operator string) error {
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	updated, err := model.MarkWithdrawalPaid(txCtx, infmysql.SQLX(), id, operator)
	if err != nil {
		return err
	}
	if !updated {
		return ErrWithdrawalNotFound
	}
	fmt.Printf("[Withdraw] 提现已打款: withdrawal_id=%d, operator=%s, at=%d\n",
		id, operator, time.Now().UnixMilli())
	return nil
}
