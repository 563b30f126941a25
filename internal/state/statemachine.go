package state

import "fmt"

// Phase 回合阶段
const (
	PhaseSelection = "selection" // 选卡中(回合创建~选卡截止)
	PhasePlaying   = "playing"   // 叫号中(每3.5秒叫一个号)
	PhaseWinner    = "winner"    // 已有赢家(展示期，结束后开新回合)
)

// Event 回合事件
const (
	EvtSelectionEnd  = "selection_end"  // 选卡窗口到期
	EvtDeclareWinner = "declare_winner" // 外部判定出赢家
	EvtRollover      = "rollover"       // 开新回合(赢家展示期结束或75个号叫完)
)

// NextPhase 根据当前阶段与事件计算下一个阶段，非法转换报错
func NextPhase(cur, evt string) (string, error) {
	switch cur {
	case PhaseSelection:
		if evt == EvtSelectionEnd {
			return PhasePlaying, nil
		}
	case PhasePlaying:
		if evt == EvtDeclareWinner {
			return PhaseWinner, nil
		}
		if evt == EvtRollover {
			return PhaseSelection, nil
		}
	case PhaseWinner:
		if evt == EvtRollover {
			return PhaseSelection, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}
