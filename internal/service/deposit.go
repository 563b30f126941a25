package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	infmysql "bingo-server/internal/infra/mysql"
	infrds "bingo-server/internal/infra/redis"
	"bingo-server/internal/matcher"
	"bingo-server/internal/metrics"
	"bingo-server/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// 充值会话步骤
const (
	StepAwaitingAmount       int8 = 1 // 等用户报金额
	StepAwaitingNotification int8 = 2 // 等支付通知到达
)

// DepositSession 每用户的临时充值会话，只活到一次充值完成
type DepositSession struct {
	UserID    string
	Step      int8
	Amount    decimal.Decimal // 用户声明的充值金额（未入账）
	UpdatedAt int64
}

// ReconcileOutcome OnIncomingText 的结果：要么匹配入账了 Amount，要么没动任何状态
type ReconcileOutcome struct {
	Matched bool
	Amount  decimal.Decimal
}

var (
	ErrInvalidAmount = errors.New("amount must be a positive number")
)

// reconcileStore 对账需要的持久化操作。生产实现走 MySQL 事务，
// 测试用内存实现验证并发语义。
type reconcileStore interface {
	// ConsumeAndCredit 在单个事务里：锁定并删除匹配的待匹配通知、
	// 给用户加余额、追加账本。返回是否真的消费成功。
	// 没有匹配记录、或并发输掉删除竞争时返回 (false, nil)。
	ConsumeAndCredit(ctx context.Context, userID, username, ref string, amount decimal.Decimal, traceID string) (bool, error)
	// SavePending 入库一条未匹配通知；重复的 (ref, amount) 返回 (false, nil)
	SavePending(ctx context.Context, ref string, amount decimal.Decimal, rawText string) (bool, error)
	// Balance 查询用户当前余额
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

type DepositService interface {
	// BeginDeposit 开始一次充值会话（覆盖旧会话）
	BeginDeposit(userID string)
	// SetDepositAmount 用户声明充值金额，进入等通知状态
	SetDepositAmount(userID string, amount string) error
	// OnIncomingText 任意后续文本都跑一遍匹配与对账
	OnIncomingText(ctx context.Context, userID, username, text, traceID string) (*ReconcileOutcome, error)
	// IngestNotification 支付通知入库路径（独立于对账路径）
	IngestNotification(ctx context.Context, text, traceID string) (bool, error)
	// Session 查询用户当前会话（没有则 ok=false）
	Session(userID string) (DepositSession, bool)
	// Balance 查询用户余额
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

type depositService struct {
	store reconcileStore

	mu       sync.Mutex
	sessions map[string]*DepositSession
}

// NewDepositService 生产用：MySQL 落地
func NewDepositService() DepositService {
	return &depositService{
		store:    &mysqlReconcileStore{},
		sessions: make(map[string]*DepositSession),
	}
}

// newDepositServiceWithStore 测试入口
func newDepositServiceWithStore(store reconcileStore) *depositService {
	return &depositService{
		store:    store,
		sessions: make(map[string]*DepositSession),
	}
}

func (s *depositService) BeginDeposit(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = &DepositSession{
		UserID:    userID,
		Step:      StepAwaitingAmount,
		UpdatedAt: time.Now().UnixMilli(),
	}
}

func (s *depositService) SetDepositAmount(userID string, amount string) error {
	amtDec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		fmt.Printf("[Deposit] 无效的充值金额格式: user_id=%s, amount=%s, error=%v\n",
			userID, amount, err)
		return ErrInvalidAmount
	}
	if amtDec.LessThanOrEqual(decimal.Zero) {
		fmt.Printf("[Deposit] 充值金额必须大于0: user_id=%s, amount=%s\n", userID, amount)
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = &DepositSession{
		UserID:    userID,
		Step:      StepAwaitingNotification,
		Amount:    amtDec,
		UpdatedAt: time.Now().UnixMilli(),
	}
	return nil
}

func (s *depositService) Session(userID string) (DepositSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return DepositSession{}, false
	}
	return *sess, true
}

func (s *depositService) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.store.Balance(ctx, userID)
}

// OnIncomingText 对账主流程：
// 1. 匹配器抽取参考号与金额，缺一不可
// 2. 按 (ref, amount) 在单个事务里消费待匹配通知并入账
// 3. 成功则清掉该用户的充值会话；输掉竞争等同于无匹配，不报错
func (s *depositService) OnIncomingText(ctx context.Context, userID, username, text, traceID string) (*ReconcileOutcome, error) {
	start := time.Now()
	outcome := "no_match"
	defer func() { metrics.RecordReconcile(outcome, start) }()

	ref, refOK := matcher.ExtractReferenceCode(text)
	amt, amtOK := matcher.ExtractAmount(text)
	if !refOK || !amtOK {
		return &ReconcileOutcome{Matched: false}, nil
	}

	fmt.Printf("[Deposit] 收到可对账文本: user_id=%s, ref=%s, amount=%s, trace_id=%s\n",
		userID, ref, amt.String(), traceID)

	// Redis 进行中锁：按参考号吸收瞬时重复消息，减轻数据库行锁压力。
	// 拿不到锁的请求当作没匹配处理（最终一致性由条件删除保证，锁只是优化）。
	if r := infrds.Client(); r != nil {
		lockValue := uuid.New().String()
		lockKey := infrds.ReconcileLockKey(ref)
		ok, _ := r.SetNX(ctx, lockKey, lockValue, reconcileLockTTL).Result()
		if !ok {
			fmt.Printf("[Deposit] 同参考号对账进行中，按无匹配处理: ref=%s, trace_id=%s\n", ref, traceID)
			outcome = "race_lost"
			return &ReconcileOutcome{Matched: false}, nil
		}
		// Lua 原子释放：只删自己设置的锁值
		defer func() {
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			if _, err := r.Eval(ctx, script, []string{lockKey}, lockValue).Result(); err != nil {
				fmt.Printf("[Deposit] 释放对账锁失败: ref=%s, error=%v, trace_id=%s\n", ref, err, traceID)
			}
		}()
	}

	matched, err := s.store.ConsumeAndCredit(ctx, userID, username, ref, amt, traceID)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	if !matched {
		return &ReconcileOutcome{Matched: false}, nil
	}

	// 入账成功：清掉充值会话
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()

	fmt.Printf("[Deposit] 对账入账成功: user_id=%s, ref=%s, amount=%s, trace_id=%s\n",
		userID, ref, amt.String(), traceID)
	outcome = "matched"
	return &ReconcileOutcome{Matched: true, Amount: amt}, nil
}

// IngestNotification 支付通知入库：抽取 (ref, amount) 后落待匹配表。
// 抽不出来的文本静默忽略；重复通知返回 (false, nil)。
func (s *depositService) IngestNotification(ctx context.Context, text, traceID string) (bool, error) {
	ref, refOK := matcher.ExtractReferenceCode(text)
	amt, amtOK := matcher.ExtractAmount(text)
	if !refOK || !amtOK {
		return false, nil
	}

	// Redis 幂等标记：同一条通知被网关重复转发时直接跳过
	if r := infrds.Client(); r != nil {
		key := infrds.NotifIdemKey(ref, amt.String())
		ok, _ := r.SetNX(ctx, key, 1, notifIdemTTL).Result()
		if !ok {
			fmt.Printf("[Deposit] 重复通知（Redis 幂等命中）: ref=%s, amount=%s, trace_id=%s\n",
				ref, amt.String(), traceID)
			return false, nil
		}
	}

	stored, err := s.store.SavePending(ctx, ref, amt, text)
	if err != nil {
		return false, err
	}
	if stored {
		fmt.Printf("[Deposit] 通知已入库待匹配: ref=%s, amount=%s, trace_id=%s\n",
			ref, amt.String(), traceID)
	}
	return stored, nil
}

const (
	// 对账进行中锁 TTL：覆盖一次事务的最长耗时即可
	reconcileLockTTL = 10 * time.Second
	// 通知入库幂等标记 TTL
	notifIdemTTL = 24 * time.Hour
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// mysqlReconcileStore 生产实现：单事务完成 锁定通知 -> 删除 -> 加余额 -> 记账
type mysqlReconcileStore struct{}

func (m *mysqlReconcileStore) ConsumeAndCredit(ctx context.Context, userID, username, ref string, amount decimal.Decimal, traceID string) (bool, error) {
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		fmt.Printf("[Deposit] 开启事务失败: error=%v, ref=%s, trace_id=%s\n", err, ref, traceID)
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	// 1. 锁定匹配的待匹配通知；没有就是无匹配
	pending, err := model.GetPendingNotificationForUpdate(txCtx, tx, ref, amount)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("lookup pending notification failed: %w", err)
	}

	// 2. 条件删除，RowsAffected=0 说明输掉了消费竞争
	consumed, err := model.ConsumePendingNotification(txCtx, tx, pending.ID)
	if err != nil {
		return false, err
	}
	if !consumed {
		fmt.Printf("[Deposit] 通知已被并发消费: ref=%s, trace_id=%s\n", ref, traceID)
		return false, nil
	}

	// 3. 锁定用户（不存在则事务内创建）并加余额
	user, err := getOrCreateUserInTx(txCtx, tx, userID, username)
	if err != nil {
		return false, fmt.Errorf("failed to get or create user: %w", err)
	}
	if user.Status != 1 {
		return false, errors.New("user disabled")
	}

	beforeDec := user.Balance
	afterDec := beforeDec.Add(amount)
	if err := model.UpdateUserBalance(txCtx, tx, userID, afterDec.Round(2)); err != nil {
		return false, err
	}

	// 4. 追加账本
	ledger := &model.WalletLedger{
		UserID:       userID,
		BizType:      model.BizTypeDeposit,
		BizTypeStr:   "deposit",
		Amount:       amount.Round(2),
		BeforeAmount: beforeDec.Round(2),
		AfterAmount:  afterDec.Round(2),
		RefCode:      ref,
		Remark:       "deposit reconciled",
		TraceID:      traceID,
	}
	if err := ledger.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Deposit] 写入账本失败: error=%v, ref=%s, trace_id=%s\n", err, ref, traceID)
		return false, err
	}

	// 5. 幂等键：同一参考号二次入账在这里兜底拦截
	idemKey := "deposit:" + ref + ":" + amount.Round(2).String()
	if err := (&model.IdempotencyKey{IdempotencyKey: idemKey, Purpose: model.IdemPurposeDeposit, Ref: userID}).Insert(txCtx, tx); err != nil {
		if model.IsMySQLDuplicateKeyError(err) {
			// 已入账过：回查首次入账的用户，便于排查两个账号抢同一参考号
			credited, _ := model.SelectRefByIdemKey(ctx, infmysql.SQLX(), idemKey)
			fmt.Printf("[Deposit] 幂等键冲突，参考号已入账过: ref=%s, credited_user=%s, trace_id=%s\n",
				ref, credited, traceID)
			return false, nil
		}
		return false, err
	}

	// 6. Outbox 事件（异步投递）
	payload := map[string]any{
		"event":   "deposit_credited",
		"user_id": userID,
		"ref":     ref,
		"amount":  amount.Round(2).String(),
	}
	if err := model.CreateOutbox(txCtx, tx, model.TopicDepositEvent, idemKey, payload); err != nil {
		fmt.Printf("[Deposit] 写入 Outbox 失败: error=%v, ref=%s, trace_id=%s\n", err, ref, traceID)
		return false, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Deposit] 提交事务失败: error=%v, ref=%s, trace_id=%s\n", err, ref, traceID)
		return false, err
	}
	return true, nil
}

func (m *mysqlReconcileStore) SavePending(ctx context.Context, ref string, amount decimal.Decimal, rawText string) (bool, error) {
	p := &model.PendingNotification{RefCode: ref, Amount: amount.Round(2), RawText: rawText}
	if err := p.Insert(ctx, infmysql.SQLX()); err != nil {
		// 唯一键 (ref_code, amount) 冲突 = 重复通知
		if model.IsMySQLDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *mysqlReconcileStore) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return model.GetUserBalance(ctx, infmysql.SQLX(), userID)
}

// getOrCreateUserInTx 在事务中获取或创建用户
// 如果用户不存在，自动创建；如果存在，返回现有用户并加锁
func getOrCreateUserInTx(ctx context.Context, tx *sqlx.Tx, userID, username string) (*model.Users, error) {
	user, err := model.GetUserByUserIDForUpdate(ctx, tx, userID)
	if err == nil {
		return user, nil
	}

	if err == sql.ErrNoRows {
		now := time.Now().UnixMilli() // 13位毫秒时间戳
		newUser := &model.Users{
			UserID:    userID,
			Username:  username,
			Balance:   decimal.Zero, // 初始余额
			Status:    1,            // 正常状态
			CreatedAt: now,
			UpdatedAt: now,
		}

		query := `INSERT INTO users (user_id, username, balance, status, created_at, updated_at)
		          VALUES (?, ?, ?, ?, ?, ?)`
		result, err := tx.ExecContext(ctx, query,
			newUser.UserID, newUser.Username, newUser.Balance, newUser.Status, newUser.CreatedAt, newUser.UpdatedAt)
		if err != nil {
			// 并发创建：唯一索引冲突后重新加锁查询
			if model.IsMySQLDuplicateKeyError(err) {
				return model.GetUserByUserIDForUpdate(ctx, tx, userID)
			}
			return nil, err
		}

		id, _ := result.LastInsertId()
		newUser.ID = id

		return newUser, nil
	}

	return nil, err
}
