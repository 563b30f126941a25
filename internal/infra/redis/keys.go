package redis

import "strconv"

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixReconcileLock：对账“进行中锁”Key 的前缀。
	// 作用：使用 SETNX + TTL 按参考号串行化并发对账，吸收瞬时重复消息，
	// 减轻数据库行锁压力（最终一致性仍由条件删除保证）。
	PrefixReconcileLock = "deposit:reconcile:lock:"
	// PrefixNotifIdem：支付通知入库幂等标记 Key 的前缀。
	// 作用：SETNX 标记某条 (ref+amount) 通知已入库，重复转发直接跳过。
	PrefixNotifIdem = "deposit:notif:idem:"

	// PrefixRoundSnapshot：当前回合快照缓存，供只读状态接口快速返回
	PrefixRoundSnapshot = "round:snapshot:"
	// PrefixRoundWinner：回合赢家缓存
	PrefixRoundWinner = "round:winner:"
)

// ReconcileLockKey：构造对账“进行中锁”的完整 Key。
// 形如：deposit:reconcile:lock:{ref_code}
func ReconcileLockKey(ref string) string { return PrefixReconcileLock + ref }

// NotifIdemKey：构造通知入库幂等标记 Key。
// 形如：deposit:notif:idem:{ref_code}:{amount}
func NotifIdemKey(ref, amount string) string { return PrefixNotifIdem + ref + ":" + amount }

// RoundSnapshotKey：构造回合快照缓存 Key。形如：round:snapshot:{round_id}
func RoundSnapshotKey(roundID int64) string {
	return PrefixRoundSnapshot + strconv.FormatInt(roundID, 10)
}

// CurrentRoundSnapshotKey：当前回合快照的固定 Key（状态接口突发读）
func CurrentRoundSnapshotKey() string { return PrefixRoundSnapshot + "current" }

// RoundWinnerKey：构造回合赢家缓存 Key。形如：round:winner:{round_id}
func RoundWinnerKey(roundID int64) string {
	return PrefixRoundWinner + strconv.FormatInt(roundID, 10)
}
