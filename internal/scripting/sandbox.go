// Package scripting runs data-driven status scripts in a sandboxed GopherLua
// VM. It knows nothing of combatants; the turn engine passes plain integers in
// and reads an integer back.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the opcode budget of one hook call when the
// configured limit is zero.
const DefaultInstructionLimit = 100_000

// safeLibs are the only standard libraries a status script can see.
var safeLibs = []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath}

// strippedGlobals escape the sandbox (file and module loading, GC control,
// raw global writes) or make results depend on something other than the call's
// arguments.
var strippedGlobals = map[string][]string{
	"":     {"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require", "rawset", "setfenv", "getfenv"},
	"math": {"random", "randomseed"},
}

// opBudget is a context that expires after a fixed number of Done calls.
// GopherLua polls Done once per opcode, so the budget counts opcodes exactly.
type opBudget struct {
	context.Context
	expire context.CancelFunc
	left   atomic.Int64
}

func (b *opBudget) Done() <-chan struct{} {
	if b.left.Add(-1) <= 0 {
		b.expire()
	}
	return b.Context.Done()
}

// armInstructionLimit installs a fresh budget of limit opcodes on L and returns
// the function releasing it.
//
// Postcondition: the next execution on L fails once it exceeds limit opcodes
// (DefaultInstructionLimit when limit <= 0).
func armInstructionLimit(L *lua.LState, limit int) context.CancelFunc {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &opBudget{Context: ctx, expire: cancel}
	b.left.Store(int64(limit))
	L.SetContext(b)
	return cancel
}

// NewSandboxedState returns a VM with only base, table, string and math
// loaded, the loaders, collectgarbage and math.random removed, and a first
// budget of instLimit opcodes armed.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: the caller owns the state and must Close it.
func NewSandboxedState(instLimit int) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range safeLibs {
		open(L)
	}
	for lib, names := range strippedGlobals {
		var tbl *lua.LTable
		if lib != "" {
			t, ok := L.GetGlobal(lib).(*lua.LTable)
			if !ok {
				continue
			}
			tbl = t
		}
		for _, name := range names {
			if tbl == nil {
				L.SetGlobal(name, lua.LNil)
			} else {
				tbl.RawSetString(name, lua.LNil)
			}
		}
	}
	// The budget expires on its own; nothing holds the cancel.
	_ = armInstructionLimit(L, instLimit)
	return L
}

// FreezeGlobals makes the global table of L read-only. Existing globals move to
// a hidden backing table that reads fall through to; any global assignment
// raises a Lua error, and the metatable itself is locked.
//
// Precondition: every script has been loaded into L.
// Postcondition: no hook call can leave state behind in a global variable.
func FreezeGlobals(L *lua.LState) {
	globals := L.G.Global
	backing := L.NewTable()
	var keys []lua.LValue
	globals.ForEach(func(k, v lua.LValue) {
		backing.RawSet(k, v)
		keys = append(keys, k)
	})
	for _, k := range keys {
		globals.RawSet(k, lua.LNil)
	}

	mt := L.NewTable()
	mt.RawSetString("__index", backing)
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("global %q is read-only", L.CheckAny(2).String())
		return 0
	}))
	mt.RawSetString("__metatable", lua.LString("locked"))
	L.SetMetatable(globals, mt)
}
