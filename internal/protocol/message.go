package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	// 连接操作
	MsgPing MessageType = "ping" // 心跳 ping

	// 大厅
	MsgGetRoomList     MessageType = "getRoomList"     // 获取房间列表
	MsgGetOngoingGames MessageType = "getOngoingGames" // 获取进行中的游戏

	// 房间操作
	MsgCreateRoom      MessageType = "createRoom"      // 创建房间
	MsgJoinRoom        MessageType = "joinRoom"        // 加入房间（同名即重新入座）
	MsgReconnectToRoom MessageType = "reconnectToRoom" // 按名字重连，不校验密码
	MsgSpectateRoom    MessageType = "spectateRoom"    // 观战
	MsgLeaveRoom       MessageType = "leaveRoom"       // 离开房间

	// 游戏操作
	MsgStartGame  MessageType = "startGame"  // 房主开始游戏
	MsgSelectCard MessageType = "selectCard" // 翻开他人的一张牌
	MsgSendChat   MessageType = "sendChat"   // 聊天

	// 排行榜
	MsgGetStats       MessageType = "getStats"       // 获取个人统计
	MsgGetLeaderboard MessageType = "getLeaderboard" // 获取排行榜
)

// 服务端 → 客户端 消息类型
const (
	MsgPong MessageType = "pong" // 心跳 pong

	// 大厅
	MsgRoomList     MessageType = "roomList"     // 房间列表
	MsgOngoingGames MessageType = "ongoingGames" // 进行中的游戏列表

	// 房间与游戏
	MsgRoomCreated MessageType = "roomCreated" // 房间创建成功
	MsgGameUpdate  MessageType = "gameUpdate"  // 完整游戏快照
	MsgNewMessage  MessageType = "newMessage"  // 聊天/系统消息
	MsgRoundStart  MessageType = "roundStart"  // 新回合开始

	// 排行榜
	MsgStats       MessageType = "stats"       // 个人统计结果
	MsgLeaderboard MessageType = "leaderboard" // 排行榜结果

	// 错误
	MsgError MessageType = "error" // 错误消息
)
