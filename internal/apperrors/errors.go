package apperrors

import (
	"github.com/palemoky/treasure-hunt/internal/protocol"
)

// GameError 游戏错误（房间和会话共享）
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

func newError(code int) *GameError {
	return &GameError{Code: code, Message: protocol.ErrorMessages[code]}
}

// 预定义错误
var (
	ErrInvalidName      = newError(protocol.ErrCodeInvalidName)
	ErrRoomNotFound     = newError(protocol.ErrCodeRoomNotFound)
	ErrRoomFull         = newError(protocol.ErrCodeRoomFull)
	ErrNotInRoom        = newError(protocol.ErrCodeNotInRoom)
	ErrGameStarted      = newError(protocol.ErrCodeGameStarted)
	ErrWrongPassword    = newError(protocol.ErrCodeWrongPassword)
	ErrNotHost          = newError(protocol.ErrCodeNotHost)
	ErrNotEnoughPlayers = newError(protocol.ErrCodeNotEnoughPlayers)
	ErrPlayerNotFound   = newError(protocol.ErrCodePlayerNotFound)
	ErrGameNotStart     = newError(protocol.ErrCodeGameNotStart)
	ErrNotYourTurn      = newError(protocol.ErrCodeNotYourTurn)
	ErrSelfTarget       = newError(protocol.ErrCodeSelfTarget)
	ErrRoundResolving   = newError(protocol.ErrCodeRoundResolving)
	ErrGameFinished     = newError(protocol.ErrCodeGameFinished)
	ErrInvalidChat      = newError(protocol.ErrCodeInvalidChat)
	ErrMaintenance      = newError(protocol.ErrCodeServerMaintenance)
)
