package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble/v2"
)

// RecordPlayer 对局归档中的一名玩家
type RecordPlayer struct {
	Name string `json:"name"`
	Role string `json:"role"`
	Won  bool   `json:"won"`
}

// GameRecord 一局结束的游戏
type GameRecord struct {
	RoomCode       string         `json:"room_code"`
	WinningTeam    string         `json:"winning_team"`
	VictoryMessage string         `json:"victory_message"`
	Rounds         int            `json:"rounds"`
	TreasureFound  int            `json:"treasure_found"`
	TreasureGoal   int            `json:"treasure_goal"`
	TrapTriggered  int            `json:"trap_triggered"`
	TrapGoal       int            `json:"trap_goal"`
	Players        []RecordPlayer `json:"players"`
	CreatedAt      time.Time      `json:"created_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// HistoryStore 对局归档，键为 8 字节大端序递增序号
//
// 为 nil 时所有操作都是空操作。
type HistoryStore struct {
	db   *pebble.DB
	mu   sync.Mutex
	next uint64
}

// OpenHistoryStore 打开归档，dir 为空时返回 nil
func OpenHistoryStore(dir string, opts *pebble.Options) (*HistoryStore, error) {
	if dir == "" {
		return nil, nil
	}
	if opts == nil {
		opts = &pebble.Options{}
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("打开对局归档失败: %w", err)
	}

	hs := &HistoryStore{db: db}
	it, err := db.NewIter(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("读取对局归档失败: %w", err)
	}
	defer func() { _ = it.Close() }()
	if it.Last() && len(it.Key()) >= 8 {
		hs.next = binary.BigEndian.Uint64(it.Key()[:8]) + 1
	}
	return hs, nil
}

// Append 追加一条对局记录
func (hs *HistoryStore) Append(rec *GameRecord) error {
	if hs == nil || hs.db == nil || rec == nil {
		return nil
	}

	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化对局记录失败: %w", err)
	}

	hs.mu.Lock()
	defer hs.mu.Unlock()
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, hs.next)
	if err := hs.db.Set(key, val, pebble.Sync); err != nil {
		return fmt.Errorf("写入对局记录失败: %w", err)
	}
	hs.next++
	return nil
}

// Recent 按时间倒序返回最近 limit 条记录
func (hs *HistoryStore) Recent(limit int) ([]GameRecord, error) {
	if hs == nil || hs.db == nil || limit <= 0 {
		return nil, nil
	}

	it, err := hs.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	out := make([]GameRecord, 0, limit)
	for valid := it.Last(); valid && len(out) < limit; valid = it.Prev() {
		var rec GameRecord
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, it.Error()
}

// Count 已归档的对局数
func (hs *HistoryStore) Count() uint64 {
	if hs == nil {
		return 0
	}
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.next
}

// Close 关闭归档
func (hs *HistoryStore) Close() error {
	if hs == nil || hs.db == nil {
		return nil
	}
	return hs.db.Close()
}
