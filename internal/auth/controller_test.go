package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestController(store *fakeStore, presence Presence) *Controller {
	log := zap.NewNop()
	bans := NewBanTracker(5, time.Minute, log)
	creds := NewCredentialStore(store, bans, true, log)
	return NewController(creds, store, presence, log)
}

func testAccount(login string) *Account {
	return &Account{Login: login, PasswordHash: "secret"}
}

func TestCheckinRegistersSession(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakePresence())
	client := newFakeClient("bob")

	result := ctrl.Checkin(context.Background(), client, "10.0.0.1", testAccount("bob"))

	require.Equal(t, AuthSuccess, result)
	assert.Equal(t, 1, ctrl.SessionCount())

	found, ok := ctrl.Find("bob")
	require.True(t, ok)
	assert.Same(t, client, found.(*fakeClient))
}

func TestCheckinRejectsSecondSession(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakePresence())
	first := newFakeClient("bob")
	second := newFakeClient("bob")

	require.Equal(t, AuthSuccess, ctrl.Checkin(context.Background(), first, "10.0.0.1", testAccount("bob")))
	assert.Equal(t, AlreadyOnLS, ctrl.Checkin(context.Background(), second, "10.0.0.2", testAccount("bob")))

	// The holder is unchanged and still connected.
	found, ok := ctrl.Find("bob")
	require.True(t, ok)
	assert.Same(t, first, found.(*fakeClient))
	disconnected, _ := first.wasDisconnected()
	assert.False(t, disconnected)
	assert.Equal(t, 1, ctrl.SessionCount())
}

func TestCheckinConcurrentSingleWinner(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakePresence())

	const n = 32
	results := make([]Result, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = ctrl.Checkin(context.Background(), newFakeClient("bob"), "10.0.0.1", testAccount("bob"))
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, r := range results {
		switch r {
		case AuthSuccess:
			wins++
		case AlreadyOnLS:
		default:
			t.Fatalf("unexpected result %v", r)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent checkin may win")
	assert.Equal(t, 1, ctrl.SessionCount())
}

func TestCheckinBannedAccount(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakePresence())
	account := testAccount("bob")
	account.AccessLevel = -1

	result := ctrl.Checkin(context.Background(), newFakeClient("bob"), "10.0.0.1", account)

	assert.Equal(t, AccountBanned, result)
	_, ok := ctrl.Find("bob")
	assert.False(t, ok, "banned checkin must not register a session")
}

func TestCheckinInWorldAccount(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakePresence("bob"))

	result := ctrl.Checkin(context.Background(), newFakeClient("bob"), "10.0.0.1", testAccount("bob"))

	assert.Equal(t, AlreadyOnGS, result)
	_, ok := ctrl.Find("bob")
	assert.False(t, ok, "in-world rejection must leave no local session")
	assert.Equal(t, 0, ctrl.SessionCount())
}

func TestCheckinStoreFailureClosesLogin(t *testing.T) {
	store := newFakeStore()
	store.lastActiveErr = context.DeadlineExceeded
	ctrl := newTestController(store, newFakePresence())

	result := ctrl.Checkin(context.Background(), newFakeClient("bob"), "10.0.0.1", testAccount("bob"))

	assert.Equal(t, InvalidPassword, result)
	_, ok := ctrl.Find("bob")
	assert.False(t, ok)
}

func TestRemoveDisconnectsAndFrees(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakePresence())
	first := newFakeClient("bob")

	require.Equal(t, AuthSuccess, ctrl.Checkin(context.Background(), first, "10.0.0.1", testAccount("bob")))
	require.True(t, ctrl.Remove("bob"))

	disconnected, reason := first.wasDisconnected()
	assert.True(t, disconnected)
	assert.Equal(t, ReasonNone, reason)
	assert.Equal(t, 0, ctrl.SessionCount())

	// The account is free again.
	second := newFakeClient("bob")
	assert.Equal(t, AuthSuccess, ctrl.Checkin(context.Background(), second, "10.0.0.1", testAccount("bob")))
}

func TestRemoveUnknownAccount(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakePresence())

	assert.False(t, ctrl.Remove("nobody"))
	assert.False(t, ctrl.Remove(""))
	assert.Equal(t, 0, ctrl.SessionCount())
}

func TestRemoveClientOnlyEvictsHolder(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakePresence())
	holder := newFakeClient("bob")
	loser := newFakeClient("bob")

	require.Equal(t, AuthSuccess, ctrl.Checkin(context.Background(), holder, "10.0.0.1", testAccount("bob")))

	// The rejected duplicate's teardown must not evict the winner.
	assert.False(t, ctrl.RemoveClient("bob", loser))
	_, ok := ctrl.Find("bob")
	assert.True(t, ok)

	assert.True(t, ctrl.RemoveClient("bob", holder))
	_, ok = ctrl.Find("bob")
	assert.False(t, ok)
	assert.Equal(t, 0, ctrl.SessionCount())
}

func TestAssignSessionKey(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakePresence())
	client := newFakeClient("bob")

	require.Equal(t, AuthSuccess, ctrl.Checkin(context.Background(), client, "10.0.0.1", testAccount("bob")))

	key := ctrl.AssignSessionKey("bob", client)
	client.key = key

	assert.True(t, ctrl.ValidateSessionKey("bob", key))
	assert.False(t, ctrl.ValidateSessionKey("bob", SessionKey{}))
	assert.False(t, ctrl.ValidateSessionKey("alice", key))
	assert.Equal(t, 1, ctrl.SessionCount(), "reassigning the same holder keeps the count")
}

func TestEachSession(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakePresence())
	for _, login := range []string{"a", "b", "c"} {
		require.Equal(t, AuthSuccess,
			ctrl.Checkin(context.Background(), newFakeClient(login), "10.0.0.1", testAccount(login)))
	}

	seen := make(map[string]bool)
	ctrl.EachSession(func(account string, client Client) {
		seen[account] = true
	})
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, seen)
}

func TestLoginTwiceThenRelogin(t *testing.T) {
	// bob logs in, tries again from elsewhere, the operator kicks the first
	// session, and the retry succeeds.
	ctrl := newTestController(newFakeStore(), newFakePresence())
	first := newFakeClient("bob")

	require.Equal(t, AuthSuccess, ctrl.Checkin(context.Background(), first, "10.0.0.1", testAccount("bob")))
	require.Equal(t, AlreadyOnLS, ctrl.Checkin(context.Background(), newFakeClient("bob"), "10.0.0.2", testAccount("bob")))

	require.True(t, ctrl.Remove("bob"))
	disconnected, _ := first.wasDisconnected()
	require.True(t, disconnected)

	assert.Equal(t, AuthSuccess, ctrl.Checkin(context.Background(), newFakeClient("bob"), "10.0.0.2", testAccount("bob")))
}
