package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, script string) *Engine {
	t.Helper()
	dir := t.TempDir()
	if script != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.lua"), []byte(script), 0o644))
	}
	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestAllowLoginDefaultAllow(t *testing.T) {
	e := newTestEngine(t, "")

	allow, reason := e.AllowLogin("bob", "10.0.0.1", 0)
	assert.True(t, allow, "no hook means no policy")
	assert.Empty(t, reason)
}

func TestAllowLoginVeto(t *testing.T) {
	e := newTestEngine(t, `
function allow_login(ctx)
	if ctx.account == "bob" then
		return false, "maintenance"
	end
	return true
end
`)

	allow, reason := e.AllowLogin("bob", "10.0.0.1", 0)
	assert.False(t, allow)
	assert.Equal(t, "maintenance", reason)

	allow, _ = e.AllowLogin("alice", "10.0.0.1", 0)
	assert.True(t, allow)
}

func TestAllowLoginSeesContext(t *testing.T) {
	e := newTestEngine(t, `
function allow_login(ctx)
	-- only staff during the window
	return ctx.access_level >= 100, "staff only"
end
`)

	allow, _ := e.AllowLogin("gm", "10.0.0.1", 100)
	assert.True(t, allow)
	allow, reason := e.AllowLogin("bob", "10.0.0.1", 0)
	assert.False(t, allow)
	assert.Equal(t, "staff only", reason)
}

func TestAllowLoginHookErrorFailsOpen(t *testing.T) {
	e := newTestEngine(t, `
function allow_login(ctx)
	error("script bug")
end
`)

	allow, _ := e.AllowLogin("bob", "10.0.0.1", 0)
	assert.True(t, allow, "a broken script must not lock everyone out")
}

func TestMissingScriptsDir(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	allow, _ := e.AllowLogin("bob", "10.0.0.1", 0)
	assert.True(t, allow)
}

func TestBrokenScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("function ("), 0o644))

	_, err := NewEngine(dir, zap.NewNop())
	assert.Error(t, err)
}

func TestOnAuthSuccess(t *testing.T) {
	e := newTestEngine(t, `
function on_auth_success(account, ip)
	last_login = account .. "@" .. ip
end
`)

	e.OnAuthSuccess("bob", "10.0.0.1")

	e.mu.Lock()
	v := e.vm.GetGlobal("last_login")
	e.mu.Unlock()
	assert.Equal(t, "bob@10.0.0.1", lua.LVAsString(v))
}
