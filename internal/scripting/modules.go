package scripting

import (
	"math"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the engine.* Lua table into L:
//
//	engine.log(msg)                 debug-logs msg through the manager's logger
//	engine.percent_of(value, pct)   floor(value × pct / 100)
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Debug("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetField(engine, "percent_of", L.NewFunction(func(L *lua.LState) int {
		v := float64(L.CheckNumber(1))
		pct := float64(L.CheckNumber(2))
		L.Push(lua.LNumber(math.Floor(v * pct / 100)))
		return 1
	}))
	L.SetGlobal("engine", engine)
}
