package room

import (
	"time"

	"github.com/palemoky/treasure-hunt/internal/game/card"
	"github.com/palemoky/treasure-hunt/internal/server/storage"
)

// toRoomData 转换为 Redis 镜像数据，调用方持有房间锁
func (r *Room) toRoomData(now time.Time) *storage.RoomData {
	return &storage.RoomData{
		Code:        r.Code,
		State:       string(r.game.State()),
		HostName:    r.game.HostName(),
		PlayerCount: r.game.PlayerCount(),
		Spectators:  len(r.spectators),
		CreatedAt:   r.CreatedAt.Unix(),
		UpdatedAt:   now.Unix(),
		Game:        r.game.Snapshot("", false),
	}
}

// gameRecord 生成对局归档，调用方持有房间锁
func (r *Room) gameRecord() *storage.GameRecord {
	found, foundGoal, traps, trapGoal := r.game.Progress()
	winner := r.game.WinningTeam()

	rec := &storage.GameRecord{
		RoomCode:       r.Code,
		WinningTeam:    string(winner),
		VictoryMessage: r.game.Snapshot("", false).VictoryMessage,
		Rounds:         min(r.game.CurrentRound(), card.MaxRounds),
		TreasureFound:  found,
		TreasureGoal:   foundGoal,
		TrapTriggered:  traps,
		TrapGoal:       trapGoal,
		CreatedAt:      r.CreatedAt,
		FinishedAt:     r.game.FinishedAt(),
	}
	for _, p := range r.game.Players() {
		rec.Players = append(rec.Players, storage.RecordPlayer{
			Name: p.Name,
			Role: string(p.Role),
			Won:  p.Role == winner,
		})
	}
	return rec
}
