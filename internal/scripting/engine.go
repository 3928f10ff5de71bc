package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for login policy hooks (maintenance
// windows, GM-only access, custom audit). The VM is not goroutine safe, so
// calls are serialized; hooks run after the credential check and stay off
// the hot failure paths.
type Engine struct {
	vm  *lua.LState
	mu  sync.Mutex
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. A missing directory yields an engine with no hooks.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load policy scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// AllowLogin calls the Lua allow_login hook. Returns allow=true when the
// hook is absent or errors; policy scripting must never lock everyone out.
func (e *Engine) AllowLogin(account, ip string, accessLevel int) (allow bool, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("allow_login")
	if fn == lua.LNil {
		return true, ""
	}

	t := e.vm.NewTable()
	t.RawSetString("account", lua.LString(account))
	t.RawSetString("ip", lua.LString(ip))
	t.RawSetString("access_level", lua.LNumber(accessLevel))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua allow_login error", zap.Error(err))
		return true, ""
	}

	reasonVal := e.vm.Get(-1)
	allowVal := e.vm.Get(-2)
	e.vm.Pop(2)

	if allowVal == lua.LFalse {
		if s, ok := reasonVal.(lua.LString); ok {
			return false, string(s)
		}
		return false, ""
	}
	return true, ""
}

// OnAuthSuccess calls the Lua on_auth_success hook, if present.
func (e *Engine) OnAuthSuccess(account, ip string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("on_auth_success")
	if fn == lua.LNil {
		return
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LString(account), lua.LString(ip)); err != nil {
		e.log.Error("lua on_auth_success error", zap.Error(err))
	}
}

// Close releases the VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
