package export

import (
	"fmt"

	"github.com/ByLCY/cardpress/logging"
)

// State 是一次导出的生命周期阶段。
type State int

const (
	Idle State = iota
	Planning
	Rendering
	Assembling
	Done
	Failed
)

var stateNames = [...]string{"idle", "planning", "rendering", "assembling", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool { return s == Done || s == Failed }

var transitions = map[State][]State{
	Idle:       {Planning},
	Planning:   {Rendering, Failed},
	Rendering:  {Assembling, Failed},
	Assembling: {Done, Failed},
}

// CanTransition 报告 from → to 是否合法。
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// lifecycle 记录当前阶段并通知观察者。非法切换是程序错误。
type lifecycle struct {
	state   State
	observe func(State)
}

func (l *lifecycle) to(next State) {
	if !CanTransition(l.state, next) {
		panic(fmt.Sprintf("export: 非法的状态切换 %s → %s", l.state, next))
	}
	logging.Logger().Debug("导出状态切换", "from", l.state.String(), "to", next.String())
	l.state = next
	if l.observe != nil {
		l.observe(next)
	}
}

// fail 切到 Failed 并记录出错时所在的阶段。
func (l *lifecycle) fail(err error) error {
	at := l.state
	if CanTransition(at, Failed) {
		l.to(Failed)
	}
	return &FatalError{State: at, Err: err}
}
