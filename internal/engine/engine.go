package engine

import (
	"errors"
	"sync"
	"time"

	"bingo-server/common/helper"
	"bingo-server/internal/state"

	"golang.org/x/exp/rand"
)

// 回合时序参数（毫秒级参数见 config，默认值与线上一致）
const (
	TotalNumbers = 75 // 叫号池 1..75

	DefaultSelectionWindow = 45 * time.Second
	DefaultCallInterval    = 3500 * time.Millisecond
	DefaultWinnerHold      = 15 * time.Second
)

var (
	ErrDuplicateParticipant = errors.New("participant already joined this round")
	ErrUnknownParticipant   = errors.New("participant not found in current round")
	ErrNotPlaying           = errors.New("winner can only be declared in playing phase")
)

// Participant 回合参与者
type Participant struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	CardIDs  []int  `json:"card_ids"`
}

// RoundState 单一回合状态。只允许 Engine 内部持锁修改，外部只能拿快照。
type RoundState struct {
	RoundID       int64         // 回合ID，按创建时刻秒数派生，严格递增
	Phase         string        // state.PhaseSelection / PhasePlaying / PhaseWinner
	PhaseDeadline time.Time     // 当前阶段的截止时刻
	Participants  []Participant // 按加入顺序排列，player_id 回合内唯一
	DrawSequence  []int         // 1..75 的固定排列，回合创建时生成后不再变化
	CalledNumbers []int         // DrawSequence 的已叫前缀，只增不减
	Winner        *Participant  // 进入 winner 阶段时设置
}

// Snapshot 对外快照：深拷贝，读方任意持有不影响引擎
type Snapshot struct {
	RoundID       int64         `json:"round_id"`
	Phase         string        `json:"phase"`
	PhaseDeadline int64         `json:"phase_deadline"` // 毫秒时间戳
	Participants  []Participant `json:"participants"`
	CalledNumbers []int         `json:"called_numbers"`
	Winner        *Participant  `json:"winner,omitempty"`
	ServerTime    int64         `json:"server_time"` // 毫秒时间戳
}

// Transition 描述一次 Tick/DeclareWinner 产生的变化，交给 worker 做审计与广播
type Transition struct {
	RoundID      int64
	Event        string // state.Evt* 或 EvtNumberCalled
	PrevPhase    string
	NextPhase    string
	CalledNumber int   // 本次叫出的号，未叫号为 0
	NewRoundID   int64 // rollover 时为新回合ID
}

// EvtNumberCalled 叫号动作（阶段不变，不属于状态机事件）
const EvtNumberCalled = "number_called"

// Config 引擎时序参数，零值使用默认
type Config struct {
	SelectionWindow time.Duration
	CallInterval    time.Duration
	WinnerHold      time.Duration
}

// Engine 持有唯一的 RoundState，所有变更经互斥锁串行化。
// 写方只有两个：定时 Tick 与 Join；读方通过 Snapshot 拿深拷贝。
type Engine struct {
	mu  sync.Mutex
	st  RoundState
	rng *rand.Rand

	selectionWindow time.Duration
	callInterval    time.Duration
	winnerHold      time.Duration
}

// New 创建引擎并立即开出第一个回合
func New(cfg Config) *Engine {
	e := &Engine{
		rng:             helper.NewRand(),
		selectionWindow: cfg.SelectionWindow,
		callInterval:    cfg.CallInterval,
		winnerHold:      cfg.WinnerHold,
	}
	if e.selectionWindow <= 0 {
		e.selectionWindow = DefaultSelectionWindow
	}
	if e.callInterval <= 0 {
		e.callInterval = DefaultCallInterval
	}
	if e.winnerHold <= 0 {
		e.winnerHold = DefaultWinnerHold
	}
	e.newRoundLocked(time.Now())
	return e
}

// newRoundLocked 开新回合：清空参与者与已叫号，重新洗出 1..75 排列。
// RoundID 取创建时刻的秒数；同秒内连开时退化为 prev+1 保证严格递增。
func (e *Engine) newRoundLocked(now time.Time) {
	id := now.Unix()
	if id <= e.st.RoundID {
		id = e.st.RoundID + 1
	}
	e.st = RoundState{
		RoundID:       id,
		Phase:         state.PhaseSelection,
		PhaseDeadline: now.Add(e.selectionWindow),
		Participants:  nil,
		DrawSequence:  helper.ShuffledRange(e.rng, TotalNumbers),
		CalledNumbers: make([]int, 0, TotalNumbers),
		Winner:        nil,
	}
}

// Tick 推进状态机。now 未到 PhaseDeadline 时为空操作；
// 到期时每次调用只应用一个变化（阶段切换或叫一个号），因此同一个 now
// 重复调用不会连跳。返回本次变化，空操作返回 nil。
func (e *Engine) Tick(now time.Time) *Transition {
	e.mu.Lock()
	defer e.mu.Unlock()

	if now.Before(e.st.PhaseDeadline) {
		return nil
	}

	switch e.st.Phase {
	case state.PhaseSelection:
		// 选卡截止：切入叫号阶段。截止时刻设为 now，下一次 Tick 立即叫第一个号。
		next, _ := state.NextPhase(e.st.Phase, state.EvtSelectionEnd)
		e.st.Phase = next
		e.st.PhaseDeadline = now
		return &Transition{
			RoundID:   e.st.RoundID,
			Event:     state.EvtSelectionEnd,
			PrevPhase: state.PhaseSelection,
			NextPhase: next,
		}

	case state.PhasePlaying:
		if len(e.st.CalledNumbers) < TotalNumbers {
			n := e.st.DrawSequence[len(e.st.CalledNumbers)]
			e.st.CalledNumbers = append(e.st.CalledNumbers, n)
			e.st.PhaseDeadline = now.Add(e.callInterval)
			return &Transition{
				RoundID:      e.st.RoundID,
				Event:        EvtNumberCalled,
				PrevPhase:    state.PhasePlaying,
				NextPhase:    state.PhasePlaying,
				CalledNumber: n,
			}
		}
		// 75 个号叫完仍无赢家：跳过 winner 阶段直接开新回合
		next, _ := state.NextPhase(e.st.Phase, state.EvtRollover)
		prevID := e.st.RoundID
		e.newRoundLocked(now)
		return &Transition{
			RoundID:    prevID,
			Event:      state.EvtRollover,
			PrevPhase:  state.PhasePlaying,
			NextPhase:  next,
			NewRoundID: e.st.RoundID,
		}

	case state.PhaseWinner:
		next, _ := state.NextPhase(e.st.Phase, state.EvtRollover)
		prevID := e.st.RoundID
		e.newRoundLocked(now)
		return &Transition{
			RoundID:    prevID,
			Event:      state.EvtRollover,
			PrevPhase:  state.PhaseWinner,
			NextPhase:  next,
			NewRoundID: e.st.RoundID,
		}
	}
	return nil
}

// Join 注册参与者。任何阶段都接受（选卡期之外加入没有竞技意义但不报错），
// 同一回合内重复的 player_id 拒绝。
func (e *Engine) Join(playerID, name string, cardIDs []int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.st.Participants {
		if e.st.Participants[i].PlayerID == playerID {
			return ErrDuplicateParticipant
		}
	}
	ids := make([]int, len(cardIDs))
	copy(ids, cardIDs)
	e.st.Participants = append(e.st.Participants, Participant{
		PlayerID: playerID,
		Name:     name,
		CardIDs:  ids,
	})
	return nil
}

// DeclareWinner 外部中奖判定回调：playing 阶段将指定参与者设为赢家，
// 进入 winner 展示期，到期后由 Tick 开新回合。
func (e *Engine) DeclareWinner(playerID string, now time.Time) (*Transition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// 状态机表做阶段合法性判定：playing 之外报中奖都是非法转换
	next, err := state.NextPhase(e.st.Phase, state.EvtDeclareWinner)
	if err != nil {
		return nil, ErrNotPlaying
	}
	for i := range e.st.Participants {
		if e.st.Participants[i].PlayerID == playerID {
			w := cloneParticipant(e.st.Participants[i])
			e.st.Winner = &w
			prev := e.st.Phase
			e.st.Phase = next
			e.st.PhaseDeadline = now.Add(e.winnerHold)
			return &Transition{
				RoundID:   e.st.RoundID,
				Event:     state.EvtDeclareWinner,
				PrevPhase: prev,
				NextPhase: next,
			}, nil
		}
	}
	return nil, ErrUnknownParticipant
}

// Snapshot 返回当前回合的深拷贝（不含未叫号的剩余排列，避免泄露开奖顺序）
func (e *Engine) Snapshot(now time.Time) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		RoundID:       e.st.RoundID,
		Phase:         e.st.Phase,
		PhaseDeadline: e.st.PhaseDeadline.UnixMilli(),
		Participants:  make([]Participant, 0, len(e.st.Participants)),
		CalledNumbers: make([]int, len(e.st.CalledNumbers)),
		ServerTime:    now.UnixMilli(),
	}
	for i := range e.st.Participants {
		snap.Participants = append(snap.Participants, cloneParticipant(e.st.Participants[i]))
	}
	copy(snap.CalledNumbers, e.st.CalledNumbers)
	if e.st.Winner != nil {
		w := cloneParticipant(*e.st.Winner)
		snap.Winner = &w
	}
	return snap
}

// DrawSequence 返回当前回合固定排列的拷贝（测试与审计用，不进快照）
func (e *Engine) DrawSequence() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq := make([]int, len(e.st.DrawSequence))
	copy(seq, e.st.DrawSequence)
	return seq
}

func cloneParticipant(p Participant) Participant {
	ids := make([]int, len(p.CardIDs))
	copy(ids, p.CardIDs)
	return Participant{PlayerID: p.PlayerID, Name: p.Name, CardIDs: ids}
}
