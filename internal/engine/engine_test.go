package engine

import (
	"testing"
	"time"

	"bingo-server/internal/state"
)

func newTestEngine() *Engine {
	return New(Config{
		SelectionWindow: 45 * time.Second,
		CallInterval:    3500 * time.Millisecond,
		WinnerHold:      15 * time.Second,
	})
}

func TestDrawSequenceIsPermutation(t *testing.T) {
	e := newTestEngine()
	seq := e.DrawSequence()
	if len(seq) != TotalNumbers {
		t.Fatalf("draw sequence len = %d, want %d", len(seq), TotalNumbers)
	}
	seen := make(map[int]bool, TotalNumbers)
	for _, n := range seq {
		if n < 1 || n > TotalNumbers {
			t.Fatalf("number out of range: %d", n)
		}
		if seen[n] {
			t.Fatalf("duplicate number in draw sequence: %d", n)
		}
		seen[n] = true
	}
}

func TestSelectionToPlayingTransition(t *testing.T) {
	e := newTestEngine()
	t0 := time.Now()
	e.mu.Lock()
	e.st.PhaseDeadline = t0.Add(45 * time.Second)
	e.mu.Unlock()

	// 选卡期内空操作
	if tr := e.Tick(t0.Add(44 * time.Second)); tr != nil {
		t.Fatalf("tick before deadline should be a no-op, got %+v", tr)
	}

	// T0+45s：进入 playing，截止时刻重置为 now
	at := t0.Add(45 * time.Second)
	tr := e.Tick(at)
	if tr == nil || tr.Event != state.EvtSelectionEnd {
		t.Fatalf("want selection_end transition, got %+v", tr)
	}
	snap := e.Snapshot(at)
	if snap.Phase != state.PhasePlaying {
		t.Fatalf("phase = %s, want playing", snap.Phase)
	}
	if snap.PhaseDeadline != at.UnixMilli() {
		t.Fatalf("phase deadline = %d, want %d", snap.PhaseDeadline, at.UnixMilli())
	}

	// T0+46s：叫出第一个号，下一次叫号排在 3.5 秒后
	at2 := t0.Add(46 * time.Second)
	tr2 := e.Tick(at2)
	if tr2 == nil || tr2.Event != EvtNumberCalled {
		t.Fatalf("want number_called, got %+v", tr2)
	}
	seq := e.DrawSequence()
	if tr2.CalledNumber != seq[0] {
		t.Fatalf("first called = %d, want head of draw sequence %d", tr2.CalledNumber, seq[0])
	}
	snap2 := e.Snapshot(at2)
	if want := at2.Add(3500 * time.Millisecond).UnixMilli(); snap2.PhaseDeadline != want {
		t.Fatalf("next call deadline = %d, want %d", snap2.PhaseDeadline, want)
	}
}

func TestOneTransitionPerTick(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	e.mu.Lock()
	e.st.PhaseDeadline = now
	e.mu.Unlock()

	// 每次 Tick 只应用一个变化：先切阶段，再叫第一个号
	tr := e.Tick(now)
	if tr == nil || tr.Event != state.EvtSelectionEnd {
		t.Fatalf("first tick: want selection_end, got %+v", tr)
	}
	tr = e.Tick(now)
	if tr == nil || tr.Event != EvtNumberCalled {
		t.Fatalf("second tick: want number_called, got %+v", tr)
	}
	// 首号已叫，下一次叫号排在 3.5 秒后：同一时刻继续 Tick 必须是空操作
	for i := 0; i < 5; i++ {
		if tr := e.Tick(now); tr != nil {
			t.Fatalf("repeated tick at same now applied transition: %+v", tr)
		}
	}
}

func TestCalledNumbersPrefixOfDrawSequence(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	e.mu.Lock()
	e.st.Phase = state.PhasePlaying
	e.st.PhaseDeadline = now
	e.mu.Unlock()
	seq := e.DrawSequence()

	prevLen := 0
	for i := 0; i < 30; i++ {
		tr := e.Tick(now)
		if tr == nil || tr.Event != EvtNumberCalled {
			t.Fatalf("tick %d: want number_called, got %+v", i, tr)
		}
		snap := e.Snapshot(now)
		if len(snap.CalledNumbers) != prevLen+1 {
			t.Fatalf("called numbers shrank or skipped: len=%d prev=%d", len(snap.CalledNumbers), prevLen)
		}
		prevLen = len(snap.CalledNumbers)
		for j, n := range snap.CalledNumbers {
			if n != seq[j] {
				t.Fatalf("called[%d] = %d, not a prefix of draw sequence (want %d)", j, n, seq[j])
			}
		}
		// 推到下一个叫号时刻
		now = now.Add(3500 * time.Millisecond)
		e.mu.Lock()
		e.st.PhaseDeadline = now
		e.mu.Unlock()
	}
}

func TestExhaustedRoundRollsOver(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	firstID := e.Snapshot(now).RoundID
	if err := e.Join("p1", "Player One", []int{1, 2}); err != nil {
		t.Fatalf("join: %v", err)
	}

	e.mu.Lock()
	e.st.Phase = state.PhasePlaying
	e.st.PhaseDeadline = now
	e.mu.Unlock()

	// 叫完 75 个号
	for i := 0; i < TotalNumbers; i++ {
		if tr := e.Tick(now); tr == nil || tr.Event != EvtNumberCalled {
			t.Fatalf("call %d failed: %+v", i, tr)
		}
		now = now.Add(3500 * time.Millisecond)
	}
	// 号池耗尽且无赢家：直接开新回合
	tr := e.Tick(now)
	if tr == nil || tr.Event != state.EvtRollover {
		t.Fatalf("want rollover after exhaustion, got %+v", tr)
	}
	snap := e.Snapshot(now)
	if snap.RoundID <= firstID {
		t.Fatalf("round id did not increase: %d -> %d", firstID, snap.RoundID)
	}
	if snap.Phase != state.PhaseSelection {
		t.Fatalf("new round phase = %s, want selection", snap.Phase)
	}
	if len(snap.CalledNumbers) != 0 || len(snap.Participants) != 0 {
		t.Fatalf("new round not reset: called=%d participants=%d", len(snap.CalledNumbers), len(snap.Participants))
	}
	// 新回合重新洗牌（1..75 仍是排列）
	seen := make(map[int]bool)
	for _, n := range e.DrawSequence() {
		if seen[n] {
			t.Fatalf("new round draw sequence has duplicate %d", n)
		}
		seen[n] = true
	}
	if len(seen) != TotalNumbers {
		t.Fatalf("new round draw sequence covers %d numbers, want %d", len(seen), TotalNumbers)
	}
}

func TestJoinDuplicateRejected(t *testing.T) {
	e := newTestEngine()
	if err := e.Join("p1", "Player One", []int{1}); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if err := e.Join("p1", "Player One Again", []int{2}); err != ErrDuplicateParticipant {
		t.Fatalf("second join err = %v, want ErrDuplicateParticipant", err)
	}
	// 换回合后同一 player_id 可以重新加入
	now := time.Now()
	e.mu.Lock()
	e.st.Phase = state.PhaseWinner
	e.st.PhaseDeadline = now
	e.mu.Unlock()
	if tr := e.Tick(now); tr == nil || tr.Event != state.EvtRollover {
		t.Fatalf("want rollover, got %+v", tr)
	}
	if err := e.Join("p1", "Player One", []int{3}); err != nil {
		t.Fatalf("join after rollover: %v", err)
	}
}

func TestDeclareWinner(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	if err := e.Join("p7", "Lucky", []int{42}); err != nil {
		t.Fatalf("join: %v", err)
	}

	// selection 阶段不允许判定赢家
	if _, err := e.DeclareWinner("p7", now); err != ErrNotPlaying {
		t.Fatalf("declare in selection err = %v, want ErrNotPlaying", err)
	}

	e.mu.Lock()
	e.st.Phase = state.PhasePlaying
	e.mu.Unlock()

	if _, err := e.DeclareWinner("ghost", now); err != ErrUnknownParticipant {
		t.Fatalf("declare unknown err = %v, want ErrUnknownParticipant", err)
	}

	tr, err := e.DeclareWinner("p7", now)
	if err != nil || tr.Event != state.EvtDeclareWinner {
		t.Fatalf("declare winner: tr=%+v err=%v", tr, err)
	}
	snap := e.Snapshot(now)
	if snap.Phase != state.PhaseWinner || snap.Winner == nil || snap.Winner.PlayerID != "p7" {
		t.Fatalf("winner snapshot wrong: %+v", snap)
	}
	// 展示期结束后开新回合
	after := now.Add(15 * time.Second)
	if tr := e.Tick(after); tr == nil || tr.Event != state.EvtRollover {
		t.Fatalf("want rollover after winner hold, got %+v", tr)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	e := newTestEngine()
	if err := e.Join("p1", "One", []int{1, 2, 3}); err != nil {
		t.Fatalf("join: %v", err)
	}
	now := time.Now()
	snap := e.Snapshot(now)
	snap.Participants[0].CardIDs[0] = 99
	snap.CalledNumbers = append(snap.CalledNumbers, 1234)

	again := e.Snapshot(now)
	if again.Participants[0].CardIDs[0] == 99 {
		t.Fatal("snapshot shares card id slice with engine state")
	}
	if len(again.CalledNumbers) != 0 {
		t.Fatal("snapshot mutation leaked into engine state")
	}
}
