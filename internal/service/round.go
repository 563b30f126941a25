package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bingo-server/common"
	"bingo-server/common/logger"
	"bingo-server/internal/config"
	"bingo-server/internal/engine"
	infmysql "bingo-server/internal/infra/mysql"
	infrds "bingo-server/internal/infra/redis"
	"bingo-server/internal/metrics"
	"bingo-server/internal/model"
	"bingo-server/internal/state"

	goredis "github.com/redis/go-redis/v9"
	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 回合快照缓存 TTL：比叫号间隔略长，确保突发读总能命中
const snapshotCacheTTL = 5 * time.Second

var (
	engineOnce sync.Once
	engineInst *engine.Engine
)

// InitRoundEngine 初始化进程内回合引擎（进程启动时调用一次）
func InitRoundEngine(cfg engine.Config) {
	engineOnce.Do(func() {
		engineInst = engine.New(cfg)
		common.Printf("[round] engine initialized: selection=%v call_interval=%v winner_hold=%v\n",
			cfg.SelectionWindow, cfg.CallInterval, cfg.WinnerHold)
	})
}

// RoundEngine 返回进程内引擎实例（未初始化时为 nil）
func RoundEngine() *engine.Engine {
	return engineInst
}

// RoundService 封装回合引擎的对外操作：加入、报中奖、查询快照
type RoundService interface {
	Join(ctx context.Context, playerID, name string, cardIDs []int) error
	Claim(ctx context.Context, playerID string) error
	State(ctx context.Context) (engine.Snapshot, error)
}

type roundService struct {
	eng *engine.Engine
}

func NewRoundService() RoundService {
	return &roundService{eng: engineInst}
}

func (s *roundService) Join(ctx context.Context, playerID, name string, cardIDs []int) error {
	if s.eng == nil {
		return fmt.Errorf("round engine not initialized")
	}
	err := s.eng.Join(playerID, name, cardIDs)
	switch {
	case err == nil:
		metrics.RecordJoin("success")
	case err == engine.ErrDuplicateParticipant:
		metrics.RecordJoin("duplicate")
	default:
		metrics.RecordJoin("fail")
	}
	return err
}

func (s *roundService) Claim(ctx context.Context, playerID string) error {
	if s.eng == nil {
		return fmt.Errorf("round engine not initialized")
	}
	tr, err := s.eng.DeclareWinner(playerID, time.Now())
	if err != nil {
		return err
	}
	common.Printf("[round] winner declared: round=%d player=%s\n", tr.RoundID, playerID)

	RecordTransition(ctx, tr, playerID, "")
	CacheSnapshot(ctx, s.eng.Snapshot(time.Now()))

	if err := creditWinnings(ctx, playerID, tr.RoundID); err != nil {
		// 派彩失败不回滚中奖状态：审计与 outbox 已落，人工对账可补
		logger.Error("round: win payout failed",
			zap.Int64("round_id", tr.RoundID),
			zap.String("player_id", playerID),
			zap.Error(err))
	}

	// 中奖结果写入缓存，供机器人层/其他副本读取（尽力而为）
	if rdb := infrds.Client(); rdb != nil {
		payload, _ := common.JsonMarshal(map[string]any{
			"round_id":  tr.RoundID,
			"winner_id": playerID,
		})
		if e := rdb.Set(ctx, infrds.RoundWinnerKey(tr.RoundID), payload, 10*time.Minute).Err(); e != nil {
			logger.Warn("round: winner cache write failed", zap.Int64("round_id", tr.RoundID), zap.Error(e))
		}
	}
	return nil
}

// creditWinnings 中奖派彩：事务内给赢家加余额并记账。
// 派彩金额来自配置 game.win_amount，未配置或非正数则不派彩。
func creditWinnings(ctx context.Context, playerID string, roundID int64) error {
	cfg := config.Get()
	if cfg == nil || cfg.Game.WinAmount == "" {
		return nil
	}
	amt, err := decimal.NewFromString(cfg.Game.WinAmount)
	if err != nil || amt.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	user, err := getOrCreateUserInTx(txCtx, tx, playerID, "")
	if err != nil {
		return err
	}

	beforeDec := user.Balance
	afterDec := beforeDec.Add(amt)
	if err := model.UpdateUserBalance(txCtx, tx, playerID, afterDec.Round(2)); err != nil {
		return err
	}

	ledger := &model.WalletLedger{
		UserID:       playerID,
		BizType:      model.BizTypeWin,
		BizTypeStr:   "win",
		Amount:       amt.Round(2),
		BeforeAmount: beforeDec.Round(2),
		AfterAmount:  afterDec.Round(2),
		RoundID:      roundID,
		Remark:       "bingo win payout",
	}
	if err := ledger.Insert(txCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	common.Printf("[round] 中奖派彩成功: round=%d player=%s amount=%s remain=%s\n",
		roundID, playerID, amt.String(), afterDec.String())
	return nil
}

// RecordTransition 落一条状态机审计并打点；中奖事件额外写 Outbox 广播。
// 审计是尽力而为：落库失败只告警，不影响回合推进。
func RecordTransition(ctx context.Context, tr *engine.Transition, winnerID, traceID string) {
	if tr == nil {
		return
	}
	metrics.RecordRoundEvent(tr.Event)

	payload, _ := common.JsonMarshalToString(map[string]any{
		"round_id":      tr.RoundID,
		"event":         tr.Event,
		"called_number": tr.CalledNumber,
		"new_round_id":  tr.NewRoundID,
		"winner_id":     winnerID,
	})
	audit := &model.RoundAudit{
		RoundID:      tr.RoundID,
		EventType:    model.RoundEventToCode(tr.Event),
		PrevPhase:    tr.PrevPhase,
		NextPhase:    tr.NextPhase,
		CalledNumber: tr.CalledNumber,
		Payload:      payload,
		TraceID:      traceID,
	}
	if err := audit.Insert(ctx, infmysql.SQLX()); err != nil {
		logger.Warn("round: audit insert failed",
			zap.Int64("round_id", tr.RoundID),
			zap.String("event", tr.Event),
			zap.Error(err))
	}

	if tr.Event == state.EvtDeclareWinner {
		evt := map[string]any{
			"event":     "round_winner",
			"round_id":  tr.RoundID,
			"winner_id": winnerID,
		}
		bizKey := fmt.Sprintf("round:%d:winner", tr.RoundID)
		if err := model.CreateOutbox(ctx, infmysql.SQLX(), model.TopicRoundEvent, bizKey, evt); err != nil {
			logger.Warn("round: winner outbox insert failed",
				zap.Int64("round_id", tr.RoundID),
				zap.Error(err))
		}
	}
}

// State 返回当前回合快照。引擎在本进程时直接读内存；
// API-only 部署（无引擎）时降级读 Redis 快照缓存。
func (s *roundService) State(ctx context.Context) (engine.Snapshot, error) {
	if s.eng != nil {
		return s.eng.Snapshot(time.Now()), nil
	}

	rdb := infrds.Client()
	if rdb == nil {
		return engine.Snapshot{}, fmt.Errorf("round engine not initialized and redis unavailable")
	}
	bs, err := rdb.Get(ctx, infrds.CurrentRoundSnapshotKey()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return engine.Snapshot{}, fmt.Errorf("round snapshot not available")
		}
		return engine.Snapshot{}, err
	}
	var snap engine.Snapshot
	if err := common.JsonUnmarshal(bs, &snap); err != nil {
		return engine.Snapshot{}, err
	}
	return snap, nil
}

// CacheSnapshot 将快照写入 Redis（由 ticker worker 在每次状态变化后调用）
func CacheSnapshot(ctx context.Context, snap engine.Snapshot) {
	rdb := infrds.Client()
	if rdb == nil {
		return
	}
	payload, err := common.JsonMarshal(snap)
	if err != nil {
		return
	}
	pipe := rdb.Pipeline()
	pipe.Set(ctx, infrds.CurrentRoundSnapshotKey(), payload, snapshotCacheTTL)
	pipe.Set(ctx, infrds.RoundSnapshotKey(snap.RoundID), payload, snapshotCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("round: snapshot cache write failed", zap.Int64("round_id", snap.RoundID), zap.Error(err))
	}
}
