package session

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/palemoky/treasure-hunt/internal/apperrors"
	"github.com/palemoky/treasure-hunt/internal/protocol"
)

// MessageKind 消息类型
type MessageKind string

const (
	MessageSystem MessageKind = "system"
	MessagePlayer MessageKind = "player"
)

// Message 聊天/系统消息，写入后不再修改
type Message struct {
	Kind       MessageKind
	PlayerID   string
	PlayerName string
	Text       string
	Timestamp  time.Time
}

func (s *GameSession) addSystemMessage(format string, args ...any) {
	s.messages = append(s.messages, Message{
		Kind:      MessageSystem,
		Text:      fmt.Sprintf(format, args...),
		Timestamp: s.now(),
	})
}

// Chat 追加一条玩家聊天消息
func (s *GameSession) Chat(playerID, text string) (Message, error) {
	p := s.playerByID(playerID)
	if p == nil {
		return Message{}, apperrors.ErrNotInRoom
	}

	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > MaxChatLength {
		return Message{}, apperrors.ErrInvalidChat
	}

	msg := Message{
		Kind:       MessagePlayer,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Text:       text,
		Timestamp:  s.now(),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

// Messages 返回最近 limit 条消息，limit <= 0 返回全部
func (s *GameSession) Messages(limit int) []protocol.ChatMessage {
	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]protocol.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = protocol.ChatMessage{
			Type:       string(m.Kind),
			PlayerID:   m.PlayerID,
			PlayerName: m.PlayerName,
			Text:       m.Text,
			Timestamp:  m.Timestamp.UnixMilli(),
		}
	}
	return out
}

// MessageCount 消息总数
func (s *GameSession) MessageCount() int { return len(s.messages) }
