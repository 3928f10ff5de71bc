package gameserver

import (
	gonet "net"
	"testing"

	"github.com/l1jgo/login/internal/auth"
	"github.com/l1jgo/login/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDefinitions() []Definition {
	return []Definition{
		{ID: 1, Name: "Aden", Host: "10.1.0.1", Port: 7777, MaxPlayers: 5000},
		{ID: 2, Name: "Gludio", Host: "10.1.0.2", Port: 7777, MaxPlayers: 2000},
	}
}

func newTestTable() *Table {
	return NewTable(testDefinitions(), "shared-secret", zap.NewNop())
}

// newAuthedLink registers a link for the server id the way a completed auth
// frame would.
func newAuthedLink(t *testing.T, table *Table, id int) *Link {
	t.Helper()
	client, server := gonet.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	l := newLink(server, table, zap.NewNop())
	require.True(t, table.authenticate(l, id, "shared-secret"))
	l.serverID.Store(int32(id))
	l.authed.Store(true)
	return l
}

func TestTableDefinitionLookup(t *testing.T) {
	table := newTestTable()

	d, ok := table.Definition(2)
	require.True(t, ok)
	assert.Equal(t, "Gludio", d.Name)

	_, ok = table.Definition(99)
	assert.False(t, ok)
	assert.Len(t, table.Definitions(), 2)
}

func TestTableAuthenticate(t *testing.T) {
	table := newTestTable()
	client, server := gonet.Pipe()
	defer client.Close()
	defer server.Close()
	l := newLink(server, table, zap.NewNop())

	assert.False(t, table.authenticate(l, 99, "shared-secret"), "unknown server id")
	assert.False(t, table.authenticate(l, 1, "wrong-key"), "bad shared key")
	assert.True(t, table.authenticate(l, 1, "shared-secret"))
}

func TestTableAuthenticateRejectsTakenID(t *testing.T) {
	table := newTestTable()
	newAuthedLink(t, table, 1)

	client, server := gonet.Pipe()
	defer client.Close()
	defer server.Close()
	second := newLink(server, table, zap.NewNop())

	assert.False(t, table.authenticate(second, 1, "shared-secret"),
		"a live link already holds this id")
	assert.True(t, table.authenticate(second, 2, "shared-secret"))
}

func TestTableLinkExcludesUnauthenticated(t *testing.T) {
	table := newTestTable()
	client, server := gonet.Pipe()
	defer client.Close()
	defer server.Close()

	// Registered in the map but never finished its auth frame.
	l := newLink(server, table, zap.NewNop())
	require.True(t, table.authenticate(l, 1, "shared-secret"))

	_, ok := table.Link(1)
	assert.False(t, ok)

	l.authed.Store(true)
	l.serverID.Store(1)
	got, ok := table.Link(1)
	require.True(t, ok)
	assert.Same(t, l, got)
}

func TestPresenceOracle(t *testing.T) {
	table := newTestTable()
	aden := newAuthedLink(t, table, 1)
	gludio := newAuthedLink(t, table, 2)

	aden.setAccount("bob", true)
	gludio.setAccount("alice", true)

	assert.True(t, table.IsAccountOnAny("bob"))
	assert.True(t, table.IsAccountOnAny("alice"))
	assert.False(t, table.IsAccountOnAny("carol"))

	link, ok := table.AccountServer("bob")
	require.True(t, ok)
	assert.Same(t, aden, link)

	aden.setAccount("bob", false)
	assert.False(t, table.IsAccountOnAny("bob"))
}

func TestPresenceSkipsUnauthenticatedLink(t *testing.T) {
	table := newTestTable()
	l := newAuthedLink(t, table, 1)
	l.setAccount("bob", true)

	// A link that loses authentication no longer vouches for its accounts.
	l.authed.Store(false)
	assert.False(t, table.IsAccountOnAny("bob"))
}

func TestUnregisterRemovesOnlyHolder(t *testing.T) {
	table := newTestTable()
	first := newAuthedLink(t, table, 1)

	table.unregister(first)
	_, ok := table.Link(1)
	assert.False(t, ok)
	assert.Equal(t, 0, table.LinkCount())

	// A replacement can claim the id; the old link's late teardown must not
	// evict it.
	second := newAuthedLink(t, table, 1)
	table.unregister(first)
	got, ok := table.Link(1)
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestLinkOnlineSetReplace(t *testing.T) {
	table := newTestTable()
	l := newAuthedLink(t, table, 1)
	l.setAccount("bob", true)
	l.setAccount("alice", true)

	// A full roster report replaces the incremental state.
	l.handlePlayersInGame(rosterPacket("carol", "dave"))

	assert.False(t, l.HasAccount("bob"))
	assert.False(t, l.HasAccount("alice"))
	assert.True(t, l.HasAccount("carol"))
	assert.True(t, l.HasAccount("dave"))
}

func TestLinkPlayerCount(t *testing.T) {
	table := newTestTable()
	l := newAuthedLink(t, table, 1)

	l.players.Store(120)
	l.maxPlayers.Store(5000)
	current, max := l.PlayerCount()
	assert.Equal(t, 120, current)
	assert.Equal(t, 5000, max)
}

func TestTableValidatorWiring(t *testing.T) {
	table := newTestTable()
	key := auth.SessionKey{LoginOK1: 1, LoginOK2: 2, PlayOK1: 3, PlayOK2: 4}
	table.SetKeyValidator(staticValidator{account: "bob", key: key})

	assert.True(t, table.validator.ValidateSessionKey("bob", key))
	assert.False(t, table.validator.ValidateSessionKey("bob", auth.SessionKey{}))
	assert.False(t, table.validator.ValidateSessionKey("alice", key))
}

func rosterPacket(accounts ...string) *packet.Reader {
	w := packet.NewWriterWithOpcode(packet.GS_OPCODE_PLAYERS_IN_GAME)
	w.WriteH(uint16(len(accounts)))
	for _, a := range accounts {
		w.WriteS(a)
	}
	return packet.NewReader(w.RawBytes())
}

type staticValidator struct {
	account string
	key     auth.SessionKey
}

func (v staticValidator) ValidateSessionKey(account string, key auth.SessionKey) bool {
	return account == v.account && key == v.key
}
