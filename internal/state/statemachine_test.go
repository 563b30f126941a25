package state

import "testing"

func TestNextPhaseValidTransitions(t *testing.T) {
	cases := []struct {
		cur, evt, want string
	}{
		{PhaseSelection, EvtSelectionEnd, PhasePlaying},
		{PhasePlaying, EvtDeclareWinner, PhaseWinner},
		{PhasePlaying, EvtRollover, PhaseSelection},
		{PhaseWinner, EvtRollover, PhaseSelection},
	}
	for _, c := range cases {
		got, err := NextPhase(c.cur, c.evt)
		if err != nil {
			t.Fatalf("NextPhase(%s, %s) unexpected error: %v", c.cur, c.evt, err)
		}
		if got != c.want {
			t.Fatalf("NextPhase(%s, %s) = %s, want %s", c.cur, c.evt, got, c.want)
		}
	}
}

func TestNextPhaseInvalidTransitions(t *testing.T) {
	cases := []struct {
		cur, evt string
	}{
		{PhaseSelection, EvtDeclareWinner}, // 选卡期不能出赢家
		{PhaseSelection, EvtRollover},
		{PhaseWinner, EvtSelectionEnd},
		{PhaseWinner, EvtDeclareWinner}, // 已有赢家不能再报
		{PhasePlaying, EvtSelectionEnd},
	}
	for _, c := range cases {
		got, err := NextPhase(c.cur, c.evt)
		if err == nil {
			t.Fatalf("NextPhase(%s, %s) expected error, got phase %s", c.cur, c.evt, got)
		}
		if got != c.cur {
			t.Fatalf("NextPhase(%s, %s) on error should keep current phase, got %s", c.cur, c.evt, got)
		}
	}
}
