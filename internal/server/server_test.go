package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/treasure-hunt/internal/config"
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/server/storage"
)

type testServer struct {
	*Server
	http *httptest.Server
}

func newTestServer(t *testing.T, cd codec.Codec, rdb *redis.Client, history *storage.HistoryStore, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Game.RoundDelay = 10
	if mutate != nil {
		mutate(cfg)
	}

	s := newServer(cfg, cd, rdb, history)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
	})
	return &testServer{Server: s, http: ts}
}

// wsClient 测试用 WebSocket 客户端
type wsClient struct {
	t     *testing.T
	conn  *websocket.Conn
	codec codec.Codec
}

func (ts *testServer) dial(t *testing.T, header http.Header) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn, codec: ts.codec}
}

func (c *wsClient) send(msgType protocol.MessageType, payload any) {
	c.t.Helper()
	data, err := c.codec.Encode(codec.MustNewMessage(msgType, payload))
	require.NoError(c.t, err)

	frame := websocket.TextMessage
	if c.codec.Binary() {
		frame = websocket.BinaryMessage
	}
	require.NoError(c.t, c.conn.WriteMessage(frame, data))
}

// expect 读取消息直到出现指定类型
func (c *wsClient) expect(msgType protocol.MessageType) *protocol.Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %s", msgType)
		msg, err := c.codec.Decode(data)
		require.NoError(c.t, err)
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestServer_RegisterUnregister_Concurrency(t *testing.T) {
	t.Parallel()

	s := &Server{clients: make(map[string]*Client)}

	var wg sync.WaitGroup
	count := 100

	wg.Add(count)
	for i := range count {
		go func(i int) {
			defer wg.Done()
			c := &Client{ID: strconv.Itoa(i)}
			s.RegisterClient(c.ID, c)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, count, s.GetOnlineCount())
	assert.NotNil(t, s.GetClientByID("7"))
	assert.Nil(t, s.GetClientByID("missing"))

	wg.Add(count)
	for i := range count {
		go func(i int) {
			defer wg.Done()
			s.UnregisterClient(strconv.Itoa(i))
		}(i)
	}
	wg.Wait()
	assert.Zero(t, s.GetOnlineCount())
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, codec.JSONCodec{}, nil, nil, nil)

	resp, err := http.Get(ts.http.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_MaintenanceRejectsConnections(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, codec.JSONCodec{}, nil, nil, nil)
	assert.False(t, ts.IsMaintenanceMode())

	ts.EnterMaintenanceMode()
	assert.True(t, ts.IsMaintenanceMode())

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_OriginRejected(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, codec.JSONCodec{}, nil, nil, func(cfg *config.Config) {
		cfg.Security.AllowedOrigins = []string{"https://game.example"}
	})

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, len(ts.semaphore), "rejected connection returns its slot")

	c := ts.dial(t, http.Header{"Origin": {"https://game.example"}})
	c.send(protocol.MsgPing, protocol.PingPayload{Timestamp: 1})
	c.expect(protocol.MsgPong)
}

func TestServer_IPBlacklistRejected(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, codec.JSONCodec{}, nil, nil, func(cfg *config.Config) {
		cfg.Security.IPBlacklist = []string{"127.0.0.0/8"}
	})

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, len(ts.semaphore))
	assert.Zero(t, ts.GetOnlineCount())
}

func TestWebSocket_RoomFlow(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, codec.JSONCodec{}, nil, nil, nil)

	lobby := ts.dial(t, nil)
	host := ts.dial(t, nil)
	guest := ts.dial(t, nil)

	// 大厅连接先注册，确保能收到房间列表推送
	lobby.send(protocol.MsgGetRoomList, nil)
	lobby.expect(protocol.MsgRoomList)

	host.send(protocol.MsgCreateRoom, protocol.CreateRoomPayload{PlayerName: "Alice"})
	created, err := codec.ParsePayload[protocol.RoomCreatedPayload](host.expect(protocol.MsgRoomCreated))
	require.NoError(t, err)
	code := created.RoomID
	require.NotEmpty(t, code)

	pushed, err := codec.ParsePayload[[]protocol.RoomListItem](lobby.expect(protocol.MsgRoomList))
	require.NoError(t, err)
	require.Len(t, *pushed, 1)
	assert.Equal(t, code, (*pushed)[0].ID)

	guest.send(protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomID: strings.ToLower(code), PlayerName: "Bob"})
	snap, err := codec.ParsePayload[protocol.GameSnapshot](guest.expect(protocol.MsgGameUpdate))
	require.NoError(t, err)
	assert.Len(t, snap.Players, 2)

	// 断线后座位保留，房主看到 Bob 离线
	require.NoError(t, guest.conn.Close())
	for bobOnline := true; bobOnline; {
		snap, err := codec.ParsePayload[protocol.GameSnapshot](host.expect(protocol.MsgGameUpdate))
		require.NoError(t, err)
		for _, p := range snap.Players {
			if p.Name == "Bob" {
				bobOnline = p.Connected
			}
		}
	}

	again := ts.dial(t, nil)
	again.send(protocol.MsgReconnectToRoom, protocol.ReconnectToRoomPayload{RoomID: code, PlayerName: "Bob"})
	snap, err = codec.ParsePayload[protocol.GameSnapshot](again.expect(protocol.MsgGameUpdate))
	require.NoError(t, err)
	for _, p := range snap.Players {
		assert.True(t, p.Connected, p.Name)
	}
}

func TestWebSocket_InvalidFrame(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, codec.JSONCodec{}, nil, nil, nil)
	c := ts.dial(t, nil)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	payload, err := codec.ParsePayload[protocol.ErrorPayload](c.expect(protocol.MsgError))
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrCodeInvalidMsg, payload.Code)
}

func TestWebSocket_ProtoCodec(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, codec.ProtoCodec{}, nil, nil, nil)
	c := ts.dial(t, nil)

	c.send(protocol.MsgPing, protocol.PingPayload{Timestamp: 42})

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	frame, data, err := c.conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, frame)

	msg, err := c.codec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, protocol.MsgPong, msg.Type)
	pong, err := codec.ParsePayload[protocol.PongPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, int64(42), pong.ClientTimestamp)
}

func TestAPI_RoomsAndQR(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, codec.JSONCodec{}, nil, nil, nil)
	host := ts.dial(t, nil)
	host.send(protocol.MsgCreateRoom, protocol.CreateRoomPayload{PlayerName: "Alice"})
	created, err := codec.ParsePayload[protocol.RoomCreatedPayload](host.expect(protocol.MsgRoomCreated))
	require.NoError(t, err)

	resp, err := http.Get(ts.http.URL + "/api/rooms")
	require.NoError(t, err)
	var rooms struct {
		Rooms []protocol.RoomListItem `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	_ = resp.Body.Close()
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, "Alice", rooms.Rooms[0].HostName)

	resp, err = http.Get(ts.http.URL + "/api/rooms/" + created.RoomID + "/qr")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	resp, err = http.Get(ts.http.URL + "/api/rooms/NOPE99/qr")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinURL(t *testing.T) {
	t.Parallel()

	s := &Server{config: config.Default()}
	req := httptest.NewRequest(http.MethodGet, "http://play.local:1780/api/rooms/ABC123/qr", nil)
	assert.Equal(t, "http://play.local:1780/?room=ABC123", s.joinURL(req, "ABC123"))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://play.local:1780/?room=ABC123", s.joinURL(req, "ABC123"))

	s.config.Server.PublicURL = "https://treasure.example/"
	assert.Equal(t, "https://treasure.example/?room=ABC123", s.joinURL(req, "ABC123"))
}

func sampleRecord(code string) *storage.GameRecord {
	return &storage.GameRecord{
		RoomCode:    code,
		WinningTeam: "seeker",
		Players: []storage.RecordPlayer{
			{Name: "Alice", Role: "seeker", Won: true},
			{Name: "Bob", Role: "keeper", Won: false},
			{Name: "Carol", Role: "seeker", Won: true},
		},
		FinishedAt: time.Now(),
	}
}

func TestAPI_History(t *testing.T) {
	t.Parallel()

	history, err := storage.OpenHistoryStore("history", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)

	ts := newTestServer(t, codec.JSONCodec{}, nil, history, nil)
	ts.recordGame(sampleRecord("AAA111"))
	ts.recordGame(sampleRecord("BBB222"))

	resp, err := http.Get(ts.http.URL + "/api/history?limit=1")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Total   uint64               `json:"total"`
		Records []storage.GameRecord `json:"records"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, uint64(2), body.Total)
	require.Len(t, body.Records, 1)
	assert.Equal(t, "BBB222", body.Records[0].RoomCode)
}

func TestAPI_HistoryDisabled(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, codec.JSONCodec{}, nil, nil, nil)
	ts.recordGame(sampleRecord("AAA111"))

	resp, err := http.Get(ts.http.URL + "/api/history")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Total   uint64               `json:"total"`
		Records []storage.GameRecord `json:"records"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Zero(t, body.Total)
	assert.Empty(t, body.Records)
}

func TestAPI_Leaderboard(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t, codec.JSONCodec{}, nil, nil, nil)
		resp, err := http.Get(ts.http.URL + "/api/leaderboard")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("records finished games", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

		ts := newTestServer(t, codec.JSONCodec{}, rdb, nil, nil)
		ts.recordGame(sampleRecord("AAA111"))

		resp, err := http.Get(ts.http.URL + "/api/leaderboard?limit=2")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		var body struct {
			Entries []storage.LeaderboardEntry `json:"entries"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Entries, 2)
		assert.Equal(t, 1, body.Entries[0].Rank)
		assert.Equal(t, storage.WinAsSeeker, body.Entries[0].Score)
	})
}

func TestServer_ShutdownIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newServer(config.Default(), codec.JSONCodec{}, nil, nil)
	s.Shutdown()
	assert.NotPanics(t, s.Shutdown)
}
