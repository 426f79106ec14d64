package scripting

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrNoScripts is returned by CallTick when no script directory was loaded.
var ErrNoScripts = errors.New("scripting: no scripts loaded")

// Manager owns one sandboxed LState holding every status script and exposes
// hook dispatch. Globals are frozen once loading finishes, so a hook's result
// depends only on its arguments.
//
// Manager is safe for concurrent use: the LState is single-threaded, so calls
// from parallel battle sessions are serialized.
type Manager struct {
	mu        sync.Mutex
	state     *lua.LState
	instLimit int
	logger    *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no VM loaded.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Load creates a sandboxed VM, registers the engine.* module, then executes
// every *.lua file in scriptDir in lexicographic order and freezes the globals.
// A previously loaded VM is replaced. Every later hook call gets its own budget
// of instLimit opcodes.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: the VM is registered; returns error on Lua load failure.
func (m *Manager) Load(scriptDir string, instLimit int) error {
	L := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		cancel := armInstructionLimit(L, instLimit)
		err := L.DoFile(path)
		cancel()
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	FreezeGlobals(L)

	m.mu.Lock()
	if m.state != nil {
		m.state.Close()
	}
	m.state = L
	m.instLimit = instLimit
	m.mu.Unlock()
	m.logger.Info("scripting: loaded status scripts",
		zap.String("dir", scriptDir),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// HasHook reports whether hook is a Lua function defined by the loaded scripts.
func (m *Manager) HasHook(hook string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return false
	}
	_, ok := m.state.GetGlobal(hook).(*lua.LFunction)
	return ok
}

// CallHook calls the named Lua global function. Returns (LNil, nil) if no VM is
// loaded or the hook is not defined. Lua runtime errors, including an exhausted
// instruction budget, are logged at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		m.logger.Info("scripting: no VM loaded", zap.String("hook", hook))
		return lua.LNil, nil
	}
	L := m.state

	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	cancel := armInstructionLimit(L, m.instLimit)
	defer cancel()
	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// CallTick runs a status tick hook as hook(hp, max_hp, stacks) and returns the
// extra damage it reports, floored and clamped to [0, hp].
//
// Postcondition: returns an error iff no scripts are loaded or hook is not
// defined; a script that fails or returns a non-number contributes 0.
func (m *Manager) CallTick(hook string, hp, maxHP, stacks int) (int, error) {
	m.mu.Lock()
	loaded := m.state != nil
	m.mu.Unlock()
	if !loaded {
		return 0, ErrNoScripts
	}
	if !m.HasHook(hook) {
		return 0, fmt.Errorf("scripting: tick hook %q is not defined", hook)
	}

	ret, err := m.CallHook(hook, lua.LNumber(hp), lua.LNumber(maxHP), lua.LNumber(stacks))
	if err != nil {
		return 0, err
	}
	n, ok := ret.(lua.LNumber)
	if !ok {
		if ret != lua.LNil {
			m.logger.Warn("scripting: tick hook returned a non-number",
				zap.String("hook", hook),
				zap.String("type", ret.Type().String()),
			)
		}
		return 0, nil
	}
	return max(0, min(hp, int(math.Floor(float64(n))))), nil
}

// Close releases the loaded VM, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.state.Close()
		m.state = nil
	}
}
