package plexus

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func NewMockResource1(name string) *MockResource1 {
	return &MockResource1{name: name}
}
func NewMockResource2(name string) *MockResource2 {
	return &MockResource2{name: name}
}

type callLog struct {
	calls []string
}

func TestApp_changeState(t *testing.T) {
	app := &App{
		stateful:     true,
		initialState: 1,
		state:        1,
		finalState:   2,
	}

	app.changeState(2)
	assert.Equal(t, State(2), app.nextState)
	assert.True(t, app.stateTransitioning)

	app.executeChangeState(2)
	assert.Equal(t, State(2), app.state)
}

func TestApp_addResources(t *testing.T) {
	app := &App{
		resources: make(map[reflect.Type]any),
	}

	resource1 := NewMockResource1("Resource1")
	app.addResources(resource1)
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem())

	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := NewMockResource2("Resource2")
	app.addResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem())

	require.Panics(t, func() {
		app.addResources(MockResource2{name: "value"})
	})
}

func TestResource(t *testing.T) {
	app := NewAppBuilder().Build()
	r := NewMockResource1("a")
	app.addResources(r)

	assert.Same(t, r, Resource[MockResource1](app))
	assert.Nil(t, Resource[MockResource2](app))
}

func TestApp_SystemInjection(t *testing.T) {
	app := NewAppBuilder().Build()
	log := &callLog{}
	app.addResources(log, NewMockResource1("injected"))
	app.UseSystem(System(func(cmd *Commands, l *callLog, r *MockResource1) {
		require.NotNil(t, cmd)
		l.calls = append(l.calls, r.name)
	}))

	require.True(t, app.Step())
	require.True(t, app.Step())
	assert.Equal(t, []string{"injected", "injected"}, log.calls)
}

func TestApp_UnresolvedDependencyPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	app.UseSystem(System(func(r *MockResource2) {}))
	assert.Panics(t, func() { app.Step() })
}

func TestApp_StagesRunInOrder(t *testing.T) {
	app := NewAppBuilder().Build()
	log := &callLog{}
	app.addResources(log)
	record := func(name string) func(l *callLog) {
		return func(l *callLog) { l.calls = append(l.calls, name) }
	}
	app.UseSystem(System(record("finale")).InStage(Finale))
	app.UseSystem(System(record("update")).InStage(Update))
	app.UseSystem(System(record("prelude")).InStage(Prelude))

	custom := Stage{Name: "Custom"}
	app.UseStage(custom, AfterStage(Update))
	app.UseSystem(System(record("custom")).InStage(custom))

	app.Step()
	assert.Equal(t, []string{"prelude", "update", "custom", "finale"}, log.calls)
}

func TestApp_UseStageUnknownTargetPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	assert.PanicsWithValue(t, "Stage Missing not found", func() {
		app.UseStage(Stage{Name: "X"}, BeforeStage(Stage{Name: "Missing"}))
	})
}

func TestApp_StatefulLifecycle(t *testing.T) {
	const (
		first State = iota
		second
		last
	)
	app := NewAppBuilder().UseStates(first, last).Build()
	log := &callLog{}
	app.addResources(log)
	record := func(name string) func(l *callLog) {
		return func(l *callLog) { l.calls = append(l.calls, name) }
	}

	app.UseSystem(System(record("enter first")).InState(OnEnter(first)))
	app.UseSystem(System(func(cmd *Commands, l *callLog) {
		l.calls = append(l.calls, "execute first")
		cmd.ChangeState(second)
	}).InState(OnExecute(first)))
	app.UseSystem(System(record("exit first")).InState(OnExit(first)))
	app.UseSystem(System(func(cmd *Commands, l *callLog) {
		l.calls = append(l.calls, "execute second")
		cmd.ChangeState(last)
	}).InState(OnExecute(second)))
	app.UseSystem(System(record("exit last")).InState(OnExit(last)))
	app.UseSystem(System(record("always")).InState(Always()))

	app.Run()

	assert.True(t, app.Stopped())
	assert.Equal(t, last, app.State())
	assert.Equal(t, []string{
		"enter first",
		"always", "execute first", "exit first",
		"always", "execute second",
		"exit last",
	}, log.calls)
	assert.False(t, app.Step())
}

func TestApp_StatefulSystemInStatelessAppPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	assert.PanicsWithValue(t, "Trying to use a stateful system in a stateless app.", func() {
		app.UseSystem(System(func() {}).InState(OnExecute(0)))
	})
}
