package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/palemoky/treasure-hunt/internal/config"
)

// fakeClock 手动推进的时钟
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock(bs *buckets) *fakeClock {
	c := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	bs.now = c.now
	return c
}

func TestRateLimiter_BanAfterBurst(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Security.RateLimit
	rl := NewRateLimiter(cfg.MaxPerSecond, cfg.MaxPerMinute, cfg.BanDurationTime())
	clock := newFakeClock(rl.buckets)

	for range cfg.MaxPerSecond {
		assert.True(t, rl.Allow("1.2.3.4"))
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.IsBanned("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "other IPs are unaffected")

	// 桶已经回满，但封禁期内仍拒绝
	clock.advance(cfg.BanDurationTime() / 2)
	assert.False(t, rl.Allow("1.2.3.4"))

	clock.advance(cfg.BanDurationTime())
	assert.False(t, rl.IsBanned("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
}

func TestRateLimiter_MinuteBudget(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(100, 3, time.Minute)
	clock := newFakeClock(rl.buckets)

	for range 3 {
		assert.True(t, rl.Allow("10.0.0.1"))
		clock.advance(time.Second)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestMessageRateLimiter_WarnsThenRejects(t *testing.T) {
	t.Parallel()

	ml := NewMessageRateLimiter(4)
	clock := newFakeClock(ml.buckets)

	var warnings []bool
	for range 4 {
		allowed, warning := ml.AllowMessage("c1")
		assert.True(t, allowed)
		warnings = append(warnings, warning)
	}
	assert.Equal(t, []bool{false, false, true, true}, warnings)

	allowed, warning := ml.AllowMessage("c1")
	assert.False(t, allowed)
	assert.True(t, warning)
	assert.Equal(t, 1, ml.GetWarningCount("c1"))

	clock.advance(time.Second)
	allowed, _ = ml.AllowMessage("c1")
	assert.True(t, allowed)

	ml.RemoveClient("c1")
	assert.Zero(t, ml.GetWarningCount("c1"))
}

// 超过 maxRateWarnings 次被拒绝后 ReadPump 断开连接
func TestMessageRateLimiter_DisconnectThreshold(t *testing.T) {
	t.Parallel()

	ml := NewMessageRateLimiter(config.Default().Security.MessageLimit.MaxPerSecond)
	newFakeClock(ml.buckets)

	rejected := 0
	for ml.GetWarningCount("c1") <= maxRateWarnings {
		if allowed, _ := ml.AllowMessage("c1"); !allowed {
			rejected++
		}
	}
	assert.Equal(t, maxRateWarnings+1, rejected)
}

func TestChatRateLimiter_Cooldown(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Security.ChatLimit
	cl := NewChatRateLimiter(cfg.MaxPerSecond, cfg.MaxPerMinute, cfg.CooldownDuration())
	clock := newFakeClock(cl.buckets)

	allowed, _ := cl.AllowChat("c1")
	assert.True(t, allowed)

	allowed, reason := cl.AllowChat("c1")
	assert.False(t, allowed)
	assert.Equal(t, "发言太快了，请稍后再试", reason)

	clock.advance(2 * time.Second)
	allowed, reason = cl.AllowChat("c1")
	assert.False(t, allowed)
	assert.Contains(t, reason, "冷却中")

	clock.advance(cfg.CooldownDuration())
	allowed, _ = cl.AllowChat("c1")
	assert.True(t, allowed)
}

func TestChatRateLimiter_MinuteBudget(t *testing.T) {
	t.Parallel()

	cl := NewChatRateLimiter(10, 3, 5*time.Second)
	clock := newFakeClock(cl.buckets)

	for range 3 {
		allowed, _ := cl.AllowChat("c1")
		assert.True(t, allowed)
		clock.advance(time.Second)
	}
	allowed, reason := cl.AllowChat("c1")
	assert.False(t, allowed)
	assert.Equal(t, "一分钟内发言太多，先休息一下吧", reason)
}

func TestBuckets_Sweep(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 10, time.Hour)
	clock := newFakeClock(rl.buckets)

	assert.True(t, rl.Allow("idle"))
	assert.True(t, rl.Allow("banned"))
	assert.False(t, rl.Allow("banned"))

	clock.advance(idleTTL + time.Minute)
	assert.Equal(t, 1, rl.Sweep(), "banned IPs are kept until the ban ends")
	assert.True(t, rl.IsBanned("banned"))

	clock.advance(time.Hour)
	assert.Equal(t, 1, rl.Sweep())
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, NewOriginChecker(config.Default().Security.AllowedOrigins).Check(req("https://any.example")))

	oc := NewOriginChecker([]string{" https://Game.Example/ "})
	assert.True(t, oc.Check(req("https://game.example")))
	assert.True(t, oc.Check(req("")))
	assert.False(t, oc.Check(req("https://evil.example")))
}

func TestIPFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		whitelist []string
		blacklist []string
		ip        string
		want      bool
	}{
		{"no lists", nil, nil, "8.8.8.8", true},
		{"blacklisted cidr", nil, []string{"10.0.0.0/8"}, "10.1.2.3", false},
		{"outside blacklist", nil, []string{"10.0.0.0/8"}, "11.0.0.1", true},
		{"single ip", nil, []string{"192.168.1.7"}, "192.168.1.7", false},
		{"ipv4 mapped", nil, []string{"192.168.1.7"}, "::ffff:192.168.1.7", false},
		{"whitelist hit", []string{"172.16.0.0/12"}, nil, "172.16.5.5", true},
		{"whitelist miss", []string{"172.16.0.0/12"}, nil, "8.8.8.8", false},
		{"blacklist wins", []string{"172.16.0.0/12"}, []string{"172.16.5.5"}, "172.16.5.5", false},
		{"invalid entry ignored", nil, []string{"not-an-ip"}, "8.8.8.8", true},
		{"unparsable ip with lists", nil, []string{"10.0.0.0/8"}, "garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := NewIPFilter(tt.whitelist, tt.blacklist)
			assert.Equal(t, tt.want, f.IsAllowed(tt.ip))
		})
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "203.0.113.9:5555"
	assert.Equal(t, "203.0.113.9", GetClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")
	assert.Equal(t, "192.0.2.1", GetClientIP(r))
}
