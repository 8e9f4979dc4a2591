package role

import (
	"math"
	"math/rand/v2"
)

// Role 玩家阵营
type Role string

const (
	Unassigned Role = ""
	Seeker     Role = "seeker" // 探险者
	Keeper     Role = "keeper" // 守护者
)

// Label 返回阵营中文名
func (r Role) Label() string {
	switch r {
	case Seeker:
		return "探险者"
	case Keeper:
		return "守护者"
	default:
		return "未分配"
	}
}

// seekerBias 摇摆座位分给探险者的概率
const seekerBias = 0.6

// Distribution 阵营人数分布
type Distribution struct {
	Seekers int
	Keepers int
	Swing   bool // 是否追加一个随机阵营座位
}

var distributions = map[int]Distribution{
	3:  {Seekers: 2, Keepers: 2, Swing: true},
	4:  {Seekers: 3, Keepers: 2, Swing: true},
	5:  {Seekers: 3, Keepers: 2},
	6:  {Seekers: 4, Keepers: 2},
	7:  {Seekers: 5, Keepers: 3, Swing: true},
	8:  {Seekers: 6, Keepers: 3, Swing: true},
	9:  {Seekers: 6, Keepers: 3},
	10: {Seekers: 7, Keepers: 4, Swing: true},
}

// DistributionFor 返回指定人数的阵营分布，表外人数按 60/40 取整
func DistributionFor(playerCount int) Distribution {
	if d, ok := distributions[playerCount]; ok {
		return d
	}
	return Distribution{
		Seekers: int(math.Ceil(float64(playerCount) * 0.6)),
		Keepers: int(math.Floor(float64(playerCount) * 0.4)),
	}
}

// Assign 为 playerCount 个座位分配阵营，下标即座位号
func Assign(playerCount int) []Role {
	if playerCount <= 0 {
		return nil
	}

	d := DistributionFor(playerCount)
	roles := make([]Role, 0, d.Seekers+d.Keepers+1)
	for range d.Seekers {
		roles = append(roles, Seeker)
	}
	for range d.Keepers {
		roles = append(roles, Keeper)
	}
	if d.Swing {
		if rand.Float64() < seekerBias {
			roles = append(roles, Seeker)
		} else {
			roles = append(roles, Keeper)
		}
	}

	rand.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})

	// 理论上表内人数不会不足，兜底补守护者
	for len(roles) < playerCount {
		roles = append(roles, Keeper)
	}
	return roles[:playerCount]
}
