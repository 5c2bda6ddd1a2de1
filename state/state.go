package state

import (
	"errors"
	"fmt"
	"sync"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from State, to State, condition func() bool) error
	CanTransition(to State) bool
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	GetID() string
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// 基础状态机实现
//
// A strict machine only follows registered transitions; a lenient one also follows
// unregistered ones and only enforces the conditions it knows about.
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	strict       bool
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

// NewStrictStateMachine returns a machine that rejects every transition not added with
// AddTransition.
func NewStrictStateMachine(initialState State) *BaseStateMachine {
	machine := NewBaseStateMachine(initialState)
	machine.strict = true
	return machine
}

func (sm *BaseStateMachine) allowed(to State) bool {
	conditions, exists := sm.transitions[sm.currentState.GetID()]
	if !exists {
		return !sm.strict
	}
	condition, exists := conditions[to.GetID()]
	if !exists {
		return !sm.strict
	}
	return condition == nil || condition()
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if !sm.allowed(newState) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, sm.currentState.GetID(), newState.GetID())
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

// CanTransition reports whether ChangeState(to) would succeed right now.
func (sm *BaseStateMachine) CanTransition(to State) bool {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.allowed(to)
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from State, to State, condition func() bool) error {
	if from == nil || to == nil {
		return errors.New("transition needs both states")
	}

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	fromID := from.GetID()
	toID := to.GetID()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// 基础状态, hooks are optional
type BaseState struct {
	ID    string
	Enter func()
	Exit  func()
}

func (s *BaseState) GetID() string {
	return s.ID
}

func (s *BaseState) OnEnter() {
	if s.Enter != nil {
		s.Enter()
	}
}

func (s *BaseState) OnExit() {
	if s.Exit != nil {
		s.Exit()
	}
}
