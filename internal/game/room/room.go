package room

import (
	"sync"
	"time"

	"github.com/palemoky/treasure-hunt/internal/game/session"
	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/server/storage"
	"github.com/palemoky/treasure-hunt/internal/types"
)

const (
	roomCodeLength = 6                                      // 房间号长度
	roomCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" // 房间号字符集
)

// Options 房间管理器配置
type Options struct {
	RoomTimeout       time.Duration // 等待中的房间超过该时长被清理
	FinishedRoomTTL   time.Duration // 已结束的房间保留时长
	RoundDelay        time.Duration // 回合结束到重新发牌的延迟，0 表示立即结算
	DisconnectTimeout time.Duration // 断线玩家保留座位的时长
	CleanupInterval   time.Duration
	MessageLimit      int  // newMessage 推送的最近消息条数
	ConcealHands      bool // 隐藏他人未翻开的手牌和阵营

	// OnLobbyChanged 大厅可见的房间列表发生变化，调用时不持有任何房间锁
	OnLobbyChanged func()
	// OnGameFinished 每局游戏结束时调用一次
	OnGameFinished func(rec *storage.GameRecord)
}

// DefaultOptions 默认配置
func DefaultOptions() Options {
	return Options{
		RoomTimeout:       10 * time.Minute,
		FinishedRoomTTL:   30 * time.Minute,
		RoundDelay:        3 * time.Second,
		DisconnectTimeout: 5 * time.Minute,
		CleanupInterval:   time.Minute,
		MessageLimit:      50,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RoomTimeout <= 0 {
		o.RoomTimeout = d.RoomTimeout
	}
	if o.FinishedRoomTTL <= 0 {
		o.FinishedRoomTTL = d.FinishedRoomTTL
	}
	if o.RoundDelay < 0 {
		o.RoundDelay = 0
	}
	if o.DisconnectTimeout <= 0 {
		o.DisconnectTimeout = d.DisconnectTimeout
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = d.CleanupInterval
	}
	if o.MessageLimit <= 0 {
		o.MessageLimit = d.MessageLimit
	}
	return o
}

// offlineSeat 断线玩家的座位保留，指针本身用来识别计时器属于哪一次断线
type offlineSeat struct {
	timer *time.Timer
}

// Room 游戏房间
//
// mu 串行化对该房间的所有操作；game 本身不加锁。
type Room struct {
	Code      string    // 房间号
	CreatedAt time.Time // 创建时间

	game         *session.GameSession
	clients      map[string]types.ClientInterface // 玩家 ID → 连接
	spectators   map[string]types.ClientInterface // 观战者 ID → 连接
	offline      map[string]*offlineSeat          // 玩家名 → 断线保留
	resolveTimer *time.Timer
	recorded     bool // 结果已上报

	conceal      bool
	messageLimit int

	mu sync.Mutex
}

func newRoom(code string, game *session.GameSession, opts Options) *Room {
	return &Room{
		Code:         code,
		CreatedAt:    game.CreatedAt(),
		game:         game,
		clients:      make(map[string]types.ClientInterface),
		spectators:   make(map[string]types.ClientInterface),
		offline:      make(map[string]*offlineSeat),
		conceal:      opts.ConcealHands,
		messageLimit: opts.MessageLimit,
	}
}

// Snapshot 以 viewerID 的视角获取游戏快照
func (r *Room) Snapshot(viewerID string) protocol.GameSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.Snapshot(viewerID, r.conceal)
}

// State 游戏状态
func (r *Room) State() session.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.State()
}

// PlayerCount 座位数（含离线玩家）
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.PlayerCount()
}

// SpectatorCount 观战人数
func (r *Room) SpectatorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spectators)
}

// HasClient 该连接是否绑定在房间座位上
func (r *Room) HasClient(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[clientID]
	return ok
}

// broadcast 向所有玩家和观战者发送消息
func (r *Room) broadcast(msg *protocol.Message) {
	for _, c := range r.clients {
		c.SendMessage(msg)
	}
	for _, c := range r.spectators {
		c.SendMessage(msg)
	}
}

// sendState 向单个连接发送游戏状态和最近的消息
func (r *Room) sendState(c types.ClientInterface, viewerID string) {
	c.SendMessage(codec.MustNewMessage(protocol.MsgGameUpdate, r.game.Snapshot(viewerID, r.conceal)))
	c.SendMessage(codec.MustNewMessage(protocol.MsgNewMessage, r.game.Messages(r.messageLimit)))
}

// broadcastState 广播 gameUpdate 和 newMessage
func (r *Room) broadcastState() {
	if r.conceal {
		for id, c := range r.clients {
			c.SendMessage(codec.MustNewMessage(protocol.MsgGameUpdate, r.game.Snapshot(id, true)))
		}
		if len(r.spectators) > 0 {
			msg := codec.MustNewMessage(protocol.MsgGameUpdate, r.game.Snapshot("", true))
			for _, c := range r.spectators {
				c.SendMessage(msg)
			}
		}
	} else {
		r.broadcast(codec.MustNewMessage(protocol.MsgGameUpdate, r.game.Snapshot("", false)))
	}
	r.broadcastMessages()
}

// broadcastMessages 只广播消息列表
func (r *Room) broadcastMessages() {
	r.broadcast(codec.MustNewMessage(protocol.MsgNewMessage, r.game.Messages(r.messageLimit)))
}

// unbindAll 解除所有连接与房间的绑定
func (r *Room) unbindAll() {
	for _, c := range r.clients {
		c.SetRoom("")
	}
	for _, c := range r.spectators {
		c.SetRoom("")
	}
	clear(r.clients)
	clear(r.spectators)
}

// stopTimers 停止房间的所有计时器
func (r *Room) stopTimers() {
	for name, seat := range r.offline {
		seat.timer.Stop()
		delete(r.offline, name)
	}
	if r.resolveTimer != nil {
		r.resolveTimer.Stop()
		r.resolveTimer = nil
	}
}

// RoomManager 房间管理器
//
// 锁顺序：持有房间锁时可以获取 rm.mu，反之不行。
type RoomManager struct {
	redisStore *storage.RedisStore
	opts       Options
	rooms      map[string]*Room
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewRoomManager 创建房间管理器
func NewRoomManager(rs *storage.RedisStore, opts Options) *RoomManager {
	rm := &RoomManager{
		redisStore: rs,
		opts:       opts.withDefaults(),
		rooms:      make(map[string]*Room),
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	// 启动房间清理协程
	go rm.cleanupLoop()

	return rm
}

// Close 停止清理协程和所有房间计时器
func (rm *RoomManager) Close() {
	rm.stopOnce.Do(func() { close(rm.stop) })
	for _, room := range rm.allRooms() {
		room.mu.Lock()
		room.stopTimers()
		room.mu.Unlock()
	}
}
