package protocol

// 错误码
const (
	ErrCodeUnknown           = 1000
	ErrCodeInvalidMsg        = 1001
	ErrCodeRateLimit         = 1002 // 速率限制
	ErrCodeInvalidName       = 1003
	ErrCodeRoomNotFound      = 2001
	ErrCodeRoomFull          = 2002
	ErrCodeNotInRoom         = 2003
	ErrCodeGameStarted       = 2004 // 游戏已开始
	ErrCodeWrongPassword     = 2005
	ErrCodeNotHost           = 2006
	ErrCodeNotEnoughPlayers  = 2007
	ErrCodePlayerNotFound    = 2008
	ErrCodeGameNotStart      = 3001
	ErrCodeNotYourTurn       = 3002
	ErrCodeSelfTarget        = 3003
	ErrCodeRoundResolving    = 3004
	ErrCodeGameFinished      = 3005
	ErrCodeInvalidChat       = 4001
	ErrCodeServerMaintenance = 5003 // 服务器维护中
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:           "未知错误",
	ErrCodeInvalidMsg:        "无效的消息格式",
	ErrCodeRateLimit:         "请求过于频繁",
	ErrCodeInvalidName:       "无效的玩家名",
	ErrCodeRoomNotFound:      "房间不存在",
	ErrCodeRoomFull:          "房间已满",
	ErrCodeNotInRoom:         "您不在房间中",
	ErrCodeGameStarted:       "游戏已开始",
	ErrCodeWrongPassword:     "密码错误",
	ErrCodeNotHost:           "只有房主可以开始游戏",
	ErrCodeNotEnoughPlayers:  "至少需要 3 名在线玩家",
	ErrCodePlayerNotFound:    "房间中没有该玩家",
	ErrCodeGameNotStart:      "游戏尚未开始",
	ErrCodeNotYourTurn:       "还没轮到您",
	ErrCodeSelfTarget:        "请选择其他玩家的牌",
	ErrCodeRoundResolving:    "回合结算中，请稍候",
	ErrCodeGameFinished:      "游戏已结束",
	ErrCodeInvalidChat:       "消息为空或超过 100 字",
	ErrCodeServerMaintenance: "服务器维护中",
}
