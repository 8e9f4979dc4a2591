package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/treasure-hunt/internal/game/room"
	"github.com/palemoky/treasure-hunt/internal/game/session"
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/server/storage"
	"github.com/palemoky/treasure-hunt/internal/testutil"
)

type testEnv struct {
	h      *Handler
	rm     *room.RoomManager
	server *testutil.MockServer
}

func newTestEnv(t *testing.T, maintenance bool) *testEnv {
	t.Helper()

	rm := room.NewRoomManager(storage.NewRedisStore(nil), room.Options{RoundDelay: 10 * time.Millisecond})
	t.Cleanup(rm.Close)

	mockServer := new(testutil.MockServer)
	mockServer.On("IsMaintenanceMode").Return(maintenance).Maybe()

	return &testEnv{
		h: NewHandler(HandlerDeps{
			Server:      mockServer,
			RoomManager: rm,
		}),
		rm:     rm,
		server: mockServer,
	}
}

func send(h *Handler, c *testutil.SimpleClient, msgType protocol.MessageType, payload any) {
	h.Handle(c, codec.MustNewMessage(msgType, payload))
}

func lastErrorCode(t *testing.T, c *testutil.SimpleClient) int {
	t.Helper()
	msg := c.LastOfType(protocol.MsgError)
	require.NotNil(t, msg, "expected an error message")
	payload, err := codec.ParsePayload[protocol.ErrorPayload](msg)
	require.NoError(t, err)
	return payload.Code
}

// createRoom 让 c 创建房间并返回房间号
func createRoom(t *testing.T, env *testEnv, c *testutil.SimpleClient, name string) string {
	t.Helper()
	send(env.h, c, protocol.MsgCreateRoom, protocol.CreateRoomPayload{PlayerName: name})
	require.NotEmpty(t, c.GetRoom())
	return c.GetRoom()
}

func TestHandle_UnknownType(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	c := testutil.NewSimpleClient("c1", "")

	env.h.Handle(c, &protocol.Message{Type: "bogus"})
	assert.Equal(t, protocol.ErrCodeInvalidMsg, lastErrorCode(t, c))
}

func TestHandlePing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	c := testutil.NewSimpleClient("c1", "")

	send(env.h, c, protocol.MsgPing, protocol.PingPayload{Timestamp: 1234})

	msg := c.LastOfType(protocol.MsgPong)
	require.NotNil(t, msg)
	pong, err := codec.ParsePayload[protocol.PongPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), pong.ClientTimestamp)
	assert.Positive(t, pong.ServerTimestamp)
}

func TestHandleCreateRoom(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	c := testutil.NewSimpleClient("c1", "")

	send(env.h, c, protocol.MsgCreateRoom, protocol.CreateRoomPayload{
		PlayerName: "<b>Alice</b>",
		Password:   "ignored",
	})

	msg := c.LastOfType(protocol.MsgRoomCreated)
	require.NotNil(t, msg)
	created, err := codec.ParsePayload[protocol.RoomCreatedPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, "Alice", created.PlayerInfo.Name)
	assert.False(t, created.GameData.HasPassword, "password only counts when hasPassword is set")
	assert.Equal(t, "Alice", c.GetName())
}

func TestHandleCreateRoom_Errors(t *testing.T) {
	t.Parallel()

	t.Run("maintenance", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, true)
		c := testutil.NewSimpleClient("c1", "")
		send(env.h, c, protocol.MsgCreateRoom, protocol.CreateRoomPayload{PlayerName: "Alice"})
		assert.Equal(t, protocol.ErrCodeServerMaintenance, lastErrorCode(t, c))
		assert.Zero(t, env.rm.RoomCount())
		env.server.AssertExpectations(t)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, false)
		c := testutil.NewSimpleClient("c1", "")
		env.h.Handle(c, &protocol.Message{Type: protocol.MsgCreateRoom, Payload: json.RawMessage(`"oops"`)})
		assert.Equal(t, protocol.ErrCodeInvalidMsg, lastErrorCode(t, c))
	})

	t.Run("name is only markup", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, false)
		c := testutil.NewSimpleClient("c1", "")
		send(env.h, c, protocol.MsgCreateRoom, protocol.CreateRoomPayload{PlayerName: "<script></script>"})
		assert.Equal(t, protocol.ErrCodeInvalidName, lastErrorCode(t, c))
	})
}

func TestHandleJoinRoom(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	host := testutil.NewSimpleClient("c1", "")
	send(env.h, host, protocol.MsgCreateRoom, protocol.CreateRoomPayload{
		PlayerName: "Alice", HasPassword: true, Password: "pw",
	})
	code := host.GetRoom()

	guest := testutil.NewSimpleClient("c2", "")
	send(env.h, guest, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomID: code, PlayerName: "Bob", Password: "nope"})
	assert.Equal(t, protocol.ErrCodeWrongPassword, lastErrorCode(t, guest))

	send(env.h, guest, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomID: "ZZZZZZ", PlayerName: "Bob"})
	assert.Equal(t, protocol.ErrCodeRoomNotFound, lastErrorCode(t, guest))

	send(env.h, guest, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomID: code, PlayerName: "Bob", Password: "pw"})
	assert.Equal(t, code, guest.GetRoom())
	assert.NotNil(t, guest.LastOfType(protocol.MsgGameUpdate))
}

func TestHandleJoinRoom_LeavesPreviousRoom(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	c := testutil.NewSimpleClient("c1", "")
	first := createRoom(t, env, c, "Alice")

	other := testutil.NewSimpleClient("c2", "")
	second := createRoom(t, env, other, "Bob")

	send(env.h, c, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomID: second, PlayerName: "Alice"})
	assert.Equal(t, second, c.GetRoom())
	assert.Nil(t, env.rm.GetRoom(first), "the abandoned room had no one left")
}

func TestHandleReconnectToRoom(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	host := testutil.NewSimpleClient("c1", "")
	code := createRoom(t, env, host, "Alice")
	guest := testutil.NewSimpleClient("c2", "")
	send(env.h, guest, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomID: code, PlayerName: "Bob"})

	env.rm.NotifyPlayerOffline(guest)

	again := testutil.NewSimpleClient("c2b", "")
	send(env.h, again, protocol.MsgReconnectToRoom, protocol.ReconnectToRoomPayload{RoomID: code, PlayerName: "Bob"})
	assert.Equal(t, code, again.GetRoom())
	assert.Equal(t, "Bob", again.GetName())

	stranger := testutil.NewSimpleClient("c3", "")
	send(env.h, stranger, protocol.MsgReconnectToRoom, protocol.ReconnectToRoomPayload{RoomID: code, PlayerName: "Eve"})
	assert.Equal(t, protocol.ErrCodePlayerNotFound, lastErrorCode(t, stranger))
}

func setupStartedRoom(t *testing.T, env *testEnv) (string, []*testutil.SimpleClient) {
	t.Helper()
	clients := []*testutil.SimpleClient{
		testutil.NewSimpleClient("c1", ""),
		testutil.NewSimpleClient("c2", ""),
		testutil.NewSimpleClient("c3", ""),
	}
	code := createRoom(t, env, clients[0], "Alice")
	send(env.h, clients[1], protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomID: code, PlayerName: "Bob"})
	send(env.h, clients[2], protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomID: code, PlayerName: "Carol"})

	env.rm.GetRoom(code).WithGameForTest(func(g *session.GameSession) {
		g.SetPickIndexForTest(func(int) int { return 0 })
	})

	send(env.h, clients[1], protocol.MsgStartGame, nil)
	assert.Equal(t, protocol.ErrCodeNotHost, lastErrorCode(t, clients[1]))

	send(env.h, clients[0], protocol.MsgStartGame, nil)
	require.NotNil(t, clients[0].LastOfType(protocol.MsgRoundStart))
	return code, clients
}

func TestHandleSelectCard(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	_, clients := setupStartedRoom(t, env)

	send(env.h, clients[1], protocol.MsgSelectCard, protocol.SelectCardPayload{TargetPlayerID: "c3", CardIndex: 0})
	assert.Equal(t, protocol.ErrCodeNotYourTurn, lastErrorCode(t, clients[1]))

	send(env.h, clients[0], protocol.MsgSelectCard, protocol.SelectCardPayload{TargetPlayerID: "c1", CardIndex: 0})
	assert.Equal(t, protocol.ErrCodeSelfTarget, lastErrorCode(t, clients[0]))

	send(env.h, clients[0], protocol.MsgSelectCard, protocol.SelectCardPayload{TargetPlayerID: "c2", CardIndex: 0})
	snap, err := codec.ParsePayload[protocol.GameSnapshot](clients[2].LastOfType(protocol.MsgGameUpdate))
	require.NoError(t, err)
	assert.Equal(t, "c2", snap.KeyHolderID)
	assert.Equal(t, 1, snap.CardsFlippedThisRound)
}

func TestHandleSpectateRoom(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	code, _ := setupStartedRoom(t, env)

	watcher := testutil.NewSimpleClient("s1", "")
	send(env.h, watcher, protocol.MsgGetOngoingGames, nil)
	games, err := codec.ParsePayload[[]protocol.OngoingGameItem](watcher.LastOfType(protocol.MsgOngoingGames))
	require.NoError(t, err)
	require.Len(t, *games, 1)
	assert.Equal(t, code, (*games)[0].ID)

	send(env.h, watcher, protocol.MsgSpectateRoom, protocol.SpectateRoomPayload{RoomID: code})
	assert.Equal(t, code, watcher.GetRoom())
	assert.NotNil(t, watcher.LastOfType(protocol.MsgGameUpdate))

	send(env.h, watcher, protocol.MsgSendChat, protocol.SendChatPayload{Message: "hi"})
	assert.Equal(t, protocol.ErrCodeNotInRoom, lastErrorCode(t, watcher))

	send(env.h, watcher, protocol.MsgLeaveRoom, nil)
	assert.Empty(t, watcher.GetRoom())
}

func TestHandleGetRoomList(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	host := testutil.NewSimpleClient("c1", "")
	code := createRoom(t, env, host, "Alice")

	lobby := testutil.NewSimpleClient("l1", "")
	send(env.h, lobby, protocol.MsgGetRoomList, nil)

	rooms, err := codec.ParsePayload[[]protocol.RoomListItem](lobby.LastOfType(protocol.MsgRoomList))
	require.NoError(t, err)
	require.Len(t, *rooms, 1)
	assert.Equal(t, code, (*rooms)[0].ID)
	assert.Equal(t, "Alice", (*rooms)[0].HostName)
}

func TestHandleSendChat(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	limiter := new(testutil.MockChatLimiter)
	env.h.chatLimiter = limiter
	limiter.On("AllowChat", "c1").Return(true, "").Once()
	limiter.On("AllowChat", "c1").Return(false, "发言太快了").Once()

	c := testutil.NewSimpleClient("c1", "")
	createRoom(t, env, c, "Alice")

	send(env.h, c, protocol.MsgSendChat, protocol.SendChatPayload{Message: "<i>hi</i> & bye"})
	msgs, err := codec.ParsePayload[[]protocol.ChatMessage](c.LastOfType(protocol.MsgNewMessage))
	require.NoError(t, err)
	last := (*msgs)[len(*msgs)-1]
	assert.Equal(t, "hi & bye", last.Text)
	assert.Equal(t, "Alice", last.PlayerName)

	send(env.h, c, protocol.MsgSendChat, protocol.SendChatPayload{Message: "again"})
	assert.Equal(t, protocol.ErrCodeRateLimit, lastErrorCode(t, c))

	limiter.AssertExpectations(t)
}

func TestHandleStats_Disabled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	c := testutil.NewSimpleClient("c1", "Alice")

	send(env.h, c, protocol.MsgGetStats, nil)
	assert.Equal(t, protocol.ErrCodeUnknown, lastErrorCode(t, c))

	c.Reset()
	send(env.h, c, protocol.MsgGetLeaderboard, protocol.GetLeaderboardPayload{Limit: 5})
	assert.Equal(t, protocol.ErrCodeUnknown, lastErrorCode(t, c))
}

func TestHandleStats(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, false)
	env.h.leaderboard = storage.NewLeaderboardManager(rdb)

	ctx := context.Background()
	require.NoError(t, env.h.leaderboard.RecordGameResult(ctx, "Alice", true, true))
	require.NoError(t, env.h.leaderboard.RecordGameResult(ctx, "Bob", false, true))

	c := testutil.NewSimpleClient("c1", "Alice")
	send(env.h, c, protocol.MsgGetStats, nil)
	stats, err := codec.ParsePayload[protocol.StatsPayload](c.LastOfType(protocol.MsgStats))
	require.NoError(t, err)
	assert.Equal(t, "Alice", stats.PlayerName)
	assert.Equal(t, 1, stats.KeeperWins)
	assert.Equal(t, storage.WinAsKeeper, stats.Score)
	assert.Equal(t, 1, stats.Rank)
	assert.InDelta(t, 100.0, stats.WinRate, 0.001)

	send(env.h, c, protocol.MsgGetStats, protocol.GetStatsPayload{PlayerName: "Nobody"})
	empty, err := codec.ParsePayload[protocol.StatsPayload](c.LastOfType(protocol.MsgStats))
	require.NoError(t, err)
	assert.Equal(t, "Nobody", empty.PlayerName)
	assert.Zero(t, empty.TotalGames)

	send(env.h, c, protocol.MsgGetLeaderboard, protocol.GetLeaderboardPayload{Limit: 500})
	board, err := codec.ParsePayload[protocol.LeaderboardPayload](c.LastOfType(protocol.MsgLeaderboard))
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "Alice", board.Entries[0].PlayerName)
	assert.Equal(t, "Bob", board.Entries[1].PlayerName)
}
