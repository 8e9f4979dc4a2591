package protocol

// --- 客户端请求 Payloads ---

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// CreateRoomPayload 创建房间请求
type CreateRoomPayload struct {
	PlayerName  string `json:"playerName"`
	HasPassword bool   `json:"hasPassword"`
	Password    string `json:"password"`
}

// JoinRoomPayload 加入房间请求
type JoinRoomPayload struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	Password   string `json:"password"`
}

// ReconnectToRoomPayload 重连请求（不校验密码）
type ReconnectToRoomPayload struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

// SpectateRoomPayload 观战请求
type SpectateRoomPayload struct {
	RoomID string `json:"roomId"`
}

// SelectCardPayload 翻牌请求
type SelectCardPayload struct {
	TargetPlayerID string `json:"targetPlayerId"`
	CardIndex      int    `json:"cardIndex"`
}

// SendChatPayload 聊天请求
type SendChatPayload struct {
	Message string `json:"message"`
}

// GetStatsPayload 获取个人统计请求
type GetStatsPayload struct {
	PlayerName string `json:"playerName"`
}

// GetLeaderboardPayload 获取排行榜请求
type GetLeaderboardPayload struct {
	Limit int `json:"limit"`
}

// --- 服务端响应 Payloads ---

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"clientTimestamp"` // 客户端发送的时间戳
	ServerTimestamp int64 `json:"serverTimestamp"` // 服务器时间戳（毫秒）
}

// RoomListItem 大厅房间列表项
type RoomListItem struct {
	ID          string `json:"id"`
	HostName    string `json:"hostName"`
	PlayerCount int    `json:"playerCount"`
	HasPassword bool   `json:"hasPassword"`
}

// OngoingGameItem 进行中的游戏（供观战）
type OngoingGameItem struct {
	ID            string `json:"id"`
	Round         int    `json:"round"`
	MaxRounds     int    `json:"maxRounds"`
	PlayerCount   int    `json:"playerCount"`
	TreasureFound int    `json:"treasureFound"`
	TreasureGoal  int    `json:"treasureGoal"`
	TrapTriggered int    `json:"trapTriggered"`
	TrapGoal      int    `json:"trapGoal"`
	Spectators    int    `json:"spectators"`
}

// RoomCreatedPayload 房间创建成功响应
type RoomCreatedPayload struct {
	RoomID     string         `json:"roomId"`
	GameData   GameSnapshot   `json:"gameData"`
	PlayerInfo PlayerSnapshot `json:"playerInfo"`
}

// RoundStartPayload 新回合通知，payload 直接是回合数
type RoundStartPayload int

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatsPayload 个人统计结果
type StatsPayload struct {
	PlayerName    string  `json:"playerName"`
	TotalGames    int     `json:"totalGames"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"winRate"`
	SeekerGames   int     `json:"seekerGames"`
	SeekerWins    int     `json:"seekerWins"`
	KeeperGames   int     `json:"keeperGames"`
	KeeperWins    int     `json:"keeperWins"`
	Score         int     `json:"score"`
	Rank          int     `json:"rank"`
	CurrentStreak int     `json:"currentStreak"`
	MaxWinStreak  int     `json:"maxWinStreak"`
}

// LeaderboardPayload 排行榜结果
type LeaderboardPayload struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	PlayerName string  `json:"playerName"`
	Score      int     `json:"score"`
	Wins       int     `json:"wins"`
	WinRate    float64 `json:"winRate"`
}

// --- 游戏快照 ---

// GameSnapshot 某一时刻的完整游戏状态（值拷贝，广播后不会再被修改）
type GameSnapshot struct {
	ID                    string           `json:"id"`
	HostID                string           `json:"hostId"`
	HasPassword           bool             `json:"hasPassword"`
	GameState             string           `json:"gameState"` // waiting/playing/finished
	Players               []PlayerSnapshot `json:"players"`
	CurrentRound          int              `json:"currentRound"`
	MaxRounds             int              `json:"maxRounds"`
	CardsPerPlayer        int              `json:"cardsPerPlayer"`
	TreasureFound         int              `json:"treasureFound"`
	TrapTriggered         int              `json:"trapTriggered"`
	TreasureGoal          int              `json:"treasureGoal"`
	TrapGoal              int              `json:"trapGoal"`
	TotalTreasures        int              `json:"totalTreasures"`
	TotalTraps            int              `json:"totalTraps"`
	KeyHolderID           string           `json:"keyHolderId"`
	CardsFlippedThisRound int              `json:"cardsFlippedThisRound"`
	RemainingCards        int              `json:"remainingCards"`
	Resolving             bool             `json:"resolving"`
	WinningTeam           string           `json:"winningTeam,omitempty"`
	VictoryMessage        string           `json:"victoryMessage,omitempty"`
	Winners               []string         `json:"winners,omitempty"`
}

// PlayerSnapshot 玩家快照
type PlayerSnapshot struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Role      string     `json:"role,omitempty"`
	Connected bool       `json:"connected"`
	IsHost    bool       `json:"isHost"`
	Hand      []CardInfo `json:"hand"`
}

// CardInfo 牌信息，隐藏模式下未翻开的他人手牌 Kind 为 "hidden"
type CardInfo struct {
	ID       string `json:"id,omitempty"`
	Kind     string `json:"kind"`
	Revealed bool   `json:"revealed"`
}

// HiddenKind 隐藏牌的类型占位
const HiddenKind = "hidden"

// ChatMessage 聊天/系统消息
type ChatMessage struct {
	Type       string `json:"type"` // system/player
	PlayerID   string `json:"playerId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"` // 毫秒
}
