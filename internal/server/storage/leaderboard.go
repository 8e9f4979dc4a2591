package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key
	playerStatsKey    = "player:stats:"
	leaderboardKey    = "leaderboard:score"
	dailyLeaderboard  = "leaderboard:daily:"
	weeklyLeaderboard = "leaderboard:weekly:"
)

// LeaderboardType 排行榜类型
type LeaderboardType string

const (
	LeaderboardTotal  LeaderboardType = "total"
	LeaderboardDaily  LeaderboardType = "daily"
	LeaderboardWeekly LeaderboardType = "weekly"
)

// PlayerStats 玩家统计数据，以玩家名为键
type PlayerStats struct {
	PlayerName string `json:"player_name"`

	// 总计
	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`

	// 探险者/守护者分开统计
	SeekerGames int `json:"seeker_games"`
	SeekerWins  int `json:"seeker_wins"`
	KeeperGames int `json:"keeper_games"`
	KeeperWins  int `json:"keeper_wins"`

	Score int `json:"score"`

	// 正数为连胜，负数为连败
	CurrentStreak int `json:"current_streak"`
	MaxWinStreak  int `json:"max_win_streak"`

	LastPlayedAt int64 `json:"last_played_at"`
	CreatedAt    int64 `json:"created_at"`
}

// WinRate 胜率（百分比）
func (s *PlayerStats) WinRate() float64 {
	if s.TotalGames == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalGames) * 100
}

// 积分规则：守护者人数少，胜负分值更高
const (
	WinAsKeeper  = 25
	WinAsSeeker  = 15
	LoseAsKeeper = -15
	LoseAsSeeker = -10

	StreakBonus3  = 5
	StreakBonus5  = 10
	StreakBonus10 = 20
)

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	PlayerName string  `json:"player_name"`
	Score      int     `json:"score"`
	Wins       int     `json:"wins"`
	WinRate    float64 `json:"win_rate"`
}

// LeaderboardManager 排行榜管理器
type LeaderboardManager struct {
	redis *redis.Client
	now   func() time.Time
}

// NewLeaderboardManager 创建排行榜管理器
func NewLeaderboardManager(client *redis.Client) *LeaderboardManager {
	return &LeaderboardManager{redis: client, now: time.Now}
}

// GetPlayerStats 获取玩家统计，未参与过游戏返回 nil
func (lm *LeaderboardManager) GetPlayerStats(ctx context.Context, playerName string) (*PlayerStats, error) {
	data, err := lm.redis.Get(ctx, playerStatsKey+playerName).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stats PlayerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("反序列化玩家统计失败: %w", err)
	}
	return &stats, nil
}

// SavePlayerStats 保存玩家统计
func (lm *LeaderboardManager) SavePlayerStats(ctx context.Context, stats *PlayerStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return lm.redis.Set(ctx, playerStatsKey+stats.PlayerName, data, 0).Err()
}

func (lm *LeaderboardManager) getOrCreateStats(ctx context.Context, playerName string) (*PlayerStats, error) {
	stats, err := lm.GetPlayerStats(ctx, playerName)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &PlayerStats{
			PlayerName: playerName,
			CreatedAt:  lm.now().Unix(),
		}
	}
	return stats, nil
}

// updateRoleStats 更新阵营统计并返回基础积分变化
func updateRoleStats(stats *PlayerStats, isKeeper, isWinner bool) int {
	switch {
	case isKeeper && isWinner:
		stats.KeeperGames++
		stats.KeeperWins++
		return WinAsKeeper
	case isKeeper:
		stats.KeeperGames++
		return LoseAsKeeper
	case isWinner:
		stats.SeekerGames++
		stats.SeekerWins++
		return WinAsSeeker
	default:
		stats.SeekerGames++
		return LoseAsSeeker
	}
}

// updateWinLossStats 更新胜负和连胜/连败
func updateWinLossStats(stats *PlayerStats, isWinner bool) {
	if isWinner {
		stats.Wins++
		stats.CurrentStreak = max(1, stats.CurrentStreak+1)
	} else {
		stats.Losses++
		stats.CurrentStreak = min(-1, stats.CurrentStreak-1)
	}

	if stats.CurrentStreak > stats.MaxWinStreak {
		stats.MaxWinStreak = stats.CurrentStreak
	}
}

func calculateStreakBonus(streak int) int {
	switch {
	case streak >= 10:
		return StreakBonus10
	case streak >= 5:
		return StreakBonus5
	case streak >= 3:
		return StreakBonus3
	default:
		return 0
	}
}

// RecordGameResult 记录一名玩家的对局结果
func (lm *LeaderboardManager) RecordGameResult(ctx context.Context, playerName string, isKeeper, isWinner bool) error {
	stats, err := lm.getOrCreateStats(ctx, playerName)
	if err != nil {
		return err
	}

	stats.TotalGames++
	stats.LastPlayedAt = lm.now().Unix()

	scoreChange := updateRoleStats(stats, isKeeper, isWinner)
	updateWinLossStats(stats, isWinner)

	scoreChange += calculateStreakBonus(stats.CurrentStreak)
	stats.Score = max(0, stats.Score+scoreChange)

	if err := lm.SavePlayerStats(ctx, stats); err != nil {
		return err
	}
	return lm.UpdateLeaderboard(ctx, stats)
}

// RecordGame 记录一局游戏中所有玩家的结果
func (lm *LeaderboardManager) RecordGame(ctx context.Context, rec *GameRecord) error {
	var errs []error
	for _, p := range rec.Players {
		if err := lm.RecordGameResult(ctx, p.Name, p.Role == "keeper", p.Won); err != nil {
			errs = append(errs, fmt.Errorf("记录玩家 %s 结果失败: %w", p.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (lm *LeaderboardManager) keyFor(t LeaderboardType) string {
	now := lm.now()
	switch t {
	case LeaderboardDaily:
		return dailyLeaderboard + now.Format("2006-01-02")
	case LeaderboardWeekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%s%d-W%02d", weeklyLeaderboard, year, week)
	default:
		return leaderboardKey
	}
}

// UpdateLeaderboard 更新总榜、日榜和周榜
func (lm *LeaderboardManager) UpdateLeaderboard(ctx context.Context, stats *PlayerStats) error {
	member := redis.Z{Score: float64(stats.Score), Member: stats.PlayerName}

	pipe := lm.redis.TxPipeline()
	pipe.ZAdd(ctx, leaderboardKey, member)

	dailyKey := lm.keyFor(LeaderboardDaily)
	pipe.ZAdd(ctx, dailyKey, member)
	pipe.Expire(ctx, dailyKey, 48*time.Hour)

	weeklyKey := lm.keyFor(LeaderboardWeekly)
	pipe.ZAdd(ctx, weeklyKey, member)
	pipe.Expire(ctx, weeklyKey, 8*24*time.Hour)

	_, err := pipe.Exec(ctx)
	return err
}

// GetLeaderboard 获取排行榜（从高到低）
func (lm *LeaderboardManager) GetLeaderboard(ctx context.Context, t LeaderboardType, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	results, err := lm.redis.ZRevRangeWithScores(ctx, lm.keyFor(t), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for i, result := range results {
		name, ok := result.Member.(string)
		if !ok {
			continue
		}
		stats, err := lm.GetPlayerStats(ctx, name)
		if err != nil || stats == nil {
			continue
		}

		entries = append(entries, LeaderboardEntry{
			Rank:       i + 1,
			PlayerName: name,
			Score:      int(result.Score),
			Wins:       stats.Wins,
			WinRate:    stats.WinRate(),
		})
	}
	return entries, nil
}

// GetPlayerRank 获取玩家总榜排名，未上榜返回 -1
func (lm *LeaderboardManager) GetPlayerRank(ctx context.Context, playerName string) (int64, error) {
	rank, err := lm.redis.ZRevRank(ctx, leaderboardKey, playerName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return -1, nil
		}
		return -1, err
	}
	return rank + 1, nil
}
