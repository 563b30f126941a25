package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// RoundAudit 对应 round_audit 表（回合状态机审计）
// event_type 采用数值枚举（1=selection_end 2=number_called 3=declare_winner 4=rollover）
// prev_phase/next_phase 使用字符串快照，便于直观查询
type RoundAudit struct {
	ID int64 `db:"id"`
	// 回合ID
	RoundID int64 `db:"round_id"`
	// 事件类型（数值：1=selection_end 2=number_called 3=declare_winner 4=rollover）
	EventType    int8   `db:"event_type"`
	PrevPhase    string `db:"prev_phase"`
	NextPhase    string `db:"next_phase"`
	CalledNumber int    `db:"called_number"` // number_called 事件对应的号，其他为 0
	Payload      string `db:"payload"`
	TraceID      string `db:"trace_id"`
	CreatedAt    int64  `db:"created_at"`
}

// 事件类型枚举值与字符串互转
func RoundEventToCode(evt string) int8 {
	switch evt {
	case "selection_end":
		return 1
	case "number_called":
		return 2
	case "declare_winner":
		return 3
	case "rollover":
		return 4
	}
	return 0
}

// Insert
func (a *RoundAudit) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO round_audit (round_id, event_type, prev_phase, next_phase, called_number, payload, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{a.RoundID, a.EventType, a.PrevPhase, a.NextPhase, a.CalledNumber, a.Payload, a.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}
