package plexus

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

type App struct {
	stateful           bool
	stateTransitioning bool
	initialState       State
	finalState         State
	nextState          State
	state              State
	built              bool
	stopped            bool
	stages             []Stage
	systems            map[string]map[State]map[statePhase][]systemFn
	systemsStateless   map[string][]systemFn
	resources          map[reflect.Type]any
}

func newApp() *App {
	app := &App{
		resources:        make(map[reflect.Type]any),
		systems:          make(map[string]map[State]map[statePhase][]systemFn),
		systemsStateless: make(map[string][]systemFn),
	}
	return app
}

func (app *App) Commands() *Commands {
	return &Commands{
		app: app,
	}
}

// State is the current state of a stateful app.
func (app *App) State() State { return app.state }

// Stopped reports whether the final state has been reached and exited.
func (app *App) Stopped() bool { return app.stopped }

func (app *App) start() {
	if app.built {
		return
	}
	app.built = true
	if app.stateful {
		app.Logger().Debugf("running in stateful mode")
		app.state = app.initialState
		app.callSystems(app.state, enter)
	} else {
		app.Logger().Debugf("running in stateless mode")
	}
}

// Run ticks until the final state is reached. A stateless app runs forever.
func (app *App) Run() {
	for app.Step() {
	}
}

// Step runs one tick of every stage and reports whether the app is still running.
func (app *App) Step() bool {
	if app.stopped {
		return false
	}
	app.start()

	app.callSystems(app.state, execute)
	if !app.stateful {
		return true
	}
	if app.stateTransitioning {
		app.stateTransitioning = false
		app.executeChangeState(app.nextState)
	}
	if app.state == app.finalState {
		app.callSystems(app.state, exit)
		app.stopped = true
		return false
	}
	return true
}

func (app *App) callSystems(state State, phase statePhase) {
	for _, stage := range app.stages {
		if execute == phase {
			for _, system := range app.systemsStateless[stage.Name] {
				app.callSystem(system)
			}
		}

		if !app.stateful {
			continue
		}
		if systemsInStage, ok := app.systems[stage.Name]; ok {
			if systemsInState, ok := systemsInStage[state]; ok {
				for _, system := range systemsInState[phase] {
					app.callSystem(system)
				}
			}
		}
	}
}

func (app *App) changeState(newState State) {
	app.nextState = newState
	app.stateTransitioning = true
}

func (app *App) executeChangeState(newState State) {
	app.callSystems(app.state, exit)
	app.state = newState
	app.callSystems(app.state, enter)
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// Resource returns the resource of type *T, or nil.
func Resource[T any](app *App) *T {
	if r, ok := app.resources[reflect.TypeOf((*T)(nil)).Elem()]; ok {
		return r.(*T)
	}
	return nil
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		if argType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("system %s: argument %s is not a pointer", funcName(systemValue), argType))
		}
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, ok := app.resources[underlyingType]; ok {
			args[i] = reflect.ValueOf(resource)
		} else {
			msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				funcName(systemValue),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			app.Logger().Errorf("%s", msg)
			panic(msg)
		}
	}
	systemValue.Call(args)
}

func funcName(v reflect.Value) string {
	if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
		return fn.Name()
	}
	return "?"
}
