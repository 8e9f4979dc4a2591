package handler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/palemoky/treasure-hunt/internal/protocol"
	"github.com/palemoky/treasure-hunt/internal/protocol/codec"
	"github.com/palemoky/treasure-hunt/internal/server/storage"
	"github.com/palemoky/treasure-hunt/internal/types"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 50
	statsTimeout            = 3 * time.Second
)

// --- 排行榜处理 ---

// handleGetStats 获取个人统计，未指定玩家名时查询自己
func (h *Handler) handleGetStats(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.GetStatsPayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}
	if h.leaderboard == nil {
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "排行榜未启用"))
		return
	}

	name := sanitizeName(payload.PlayerName)
	if name == "" {
		name = client.GetName()
	}
	if name == "" {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidName))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	stats, err := h.leaderboard.GetPlayerStats(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("player", name).Msg("❌ 获取玩家统计失败")
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "获取统计失败"))
		return
	}
	if stats == nil {
		// 没有统计数据，返回空数据
		client.SendMessage(codec.MustNewMessage(protocol.MsgStats, protocol.StatsPayload{
			PlayerName: name,
			Rank:       -1,
		}))
		return
	}

	rank, _ := h.leaderboard.GetPlayerRank(ctx, name)

	client.SendMessage(codec.MustNewMessage(protocol.MsgStats, protocol.StatsPayload{
		PlayerName:    stats.PlayerName,
		TotalGames:    stats.TotalGames,
		Wins:          stats.Wins,
		Losses:        stats.Losses,
		WinRate:       stats.WinRate(),
		SeekerGames:   stats.SeekerGames,
		SeekerWins:    stats.SeekerWins,
		KeeperGames:   stats.KeeperGames,
		KeeperWins:    stats.KeeperWins,
		Score:         stats.Score,
		Rank:          int(rank),
		CurrentStreak: stats.CurrentStreak,
		MaxWinStreak:  stats.MaxWinStreak,
	}))
}

// handleGetLeaderboard 获取总排行榜
func (h *Handler) handleGetLeaderboard(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.GetLeaderboardPayload](msg)
	if err != nil {
		payload = &protocol.GetLeaderboardPayload{Limit: defaultLeaderboardLimit}
	}
	if h.leaderboard == nil {
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "排行榜未启用"))
		return
	}

	limit := payload.Limit
	if limit <= 0 || limit > maxLeaderboardLimit {
		limit = defaultLeaderboardLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	entries, err := h.leaderboard.GetLeaderboard(ctx, storage.LeaderboardTotal, limit)
	if err != nil {
		log.Error().Err(err).Msg("❌ 获取排行榜失败")
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "获取排行榜失败"))
		return
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgLeaderboard, protocol.LeaderboardPayload{
		Entries: toProtocolEntries(entries),
	}))
}

// toProtocolEntries 转换为协议格式
func toProtocolEntries(entries []storage.LeaderboardEntry) []protocol.LeaderboardEntry {
	out := make([]protocol.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, protocol.LeaderboardEntry{
			Rank:       e.Rank,
			PlayerName: e.PlayerName,
			Score:      e.Score,
			Wins:       e.Wins,
			WinRate:    e.WinRate,
		})
	}
	return out
}
