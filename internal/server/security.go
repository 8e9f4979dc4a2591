package server

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// idleTTL 超过该时长没有活动的限流记录在 Sweep 时清除
const idleTTL = 10 * time.Minute

// bucket 单个 IP 或连接的令牌桶，分秒级和分钟级
type bucket struct {
	second   *rate.Limiter
	minute   *rate.Limiter // 未配置分钟上限时为 nil
	blocked  time.Time     // 封禁或冷却截止时间
	lastSeen time.Time
	warnings int
}

// take 两只桶都扣一次，返回各自是否放行
func (b *bucket) take(now time.Time) (secondOK, minuteOK bool) {
	b.lastSeen = now
	secondOK = b.second.AllowN(now, 1)
	minuteOK = b.minute == nil || b.minute.AllowN(now, 1)
	return secondOK, minuteOK
}

// buckets 按 key 保存令牌桶
type buckets struct {
	mu        sync.Mutex
	items     map[string]*bucket
	perSecond int
	perMinute int
	now       func() time.Time
}

func newBuckets(perSecond, perMinute int) *buckets {
	return &buckets{
		items:     make(map[string]*bucket),
		perSecond: perSecond,
		perMinute: perMinute,
		now:       time.Now,
	}
}

// get 取出或新建 key 的令牌桶，调用方持有 mu
func (bs *buckets) get(key string) *bucket {
	if b, ok := bs.items[key]; ok {
		return b
	}
	b := &bucket{second: rate.NewLimiter(rate.Limit(bs.perSecond), bs.perSecond)}
	if bs.perMinute > 0 {
		b.minute = rate.NewLimiter(rate.Every(time.Minute/time.Duration(bs.perMinute)), bs.perMinute)
	}
	bs.items[key] = b
	return b
}

// RemoveClient 移除 key 的记录
func (bs *buckets) RemoveClient(key string) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	delete(bs.items, key)
}

// Sweep 清除长时间不活动且未被封禁的记录，返回清除数量
func (bs *buckets) Sweep() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	now := bs.now()
	n := 0
	for key, b := range bs.items {
		if now.Sub(b.lastSeen) > idleTTL && !now.Before(b.blocked) {
			delete(bs.items, key)
			n++
		}
	}
	return n
}

// RateLimiter 建立连接的速率限制（按 IP），超限后封禁一段时间
type RateLimiter struct {
	*buckets
	ban time.Duration
}

// NewRateLimiter 创建连接速率限制器
func NewRateLimiter(maxPerSecond, maxPerMinute int, ban time.Duration) *RateLimiter {
	return &RateLimiter{buckets: newBuckets(maxPerSecond, maxPerMinute), ban: ban}
}

// Allow 是否允许该 IP 建立连接
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b := rl.get(ip)
	if now.Before(b.blocked) {
		return false
	}
	if s, m := b.take(now); s && m {
		return true
	}
	b.blocked = now.Add(rl.ban)
	log.Warn().Str("ip", ip).Dur("ban", rl.ban).Msg("⚠️ IP 请求过于频繁，暂时封禁")
	return false
}

// IsBanned IP 是否处于封禁期
func (rl *RateLimiter) IsBanned(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.items[ip]
	return ok && rl.now().Before(b.blocked)
}

// MessageRateLimiter 已建立连接的消息速率限制
//
// 桶内余量不足一半时放行但带警告；被拒绝的消息计入警告次数。
type MessageRateLimiter struct {
	*buckets
}

// NewMessageRateLimiter 创建消息速率限制器
func NewMessageRateLimiter(maxPerSecond int) *MessageRateLimiter {
	return &MessageRateLimiter{buckets: newBuckets(maxPerSecond, 0)}
}

// AllowMessage 是否允许这条消息，接近上限时 warning 为 true
func (ml *MessageRateLimiter) AllowMessage(clientID string) (allowed, warning bool) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	b := ml.get(clientID)
	if ok, _ := b.take(now); !ok {
		b.warnings++
		return false, true
	}
	return true, b.second.TokensAt(now) < float64(ml.perSecond)/2
}

// GetWarningCount 被拒绝的消息数
func (ml *MessageRateLimiter) GetWarningCount(clientID string) int {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	if b, ok := ml.items[clientID]; ok {
		return b.warnings
	}
	return 0
}

// ChatRateLimiter 聊天速率限制，超限后进入冷却
type ChatRateLimiter struct {
	*buckets
	cooldown time.Duration
}

// NewChatRateLimiter 创建聊天速率限制器
func NewChatRateLimiter(maxPerSecond, maxPerMinute int, cooldown time.Duration) *ChatRateLimiter {
	return &ChatRateLimiter{buckets: newBuckets(maxPerSecond, maxPerMinute), cooldown: cooldown}
}

// AllowChat 是否允许发言，不允许时返回给玩家的提示
func (cl *ChatRateLimiter) AllowChat(clientID string) (allowed bool, reason string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	b := cl.get(clientID)
	if now.Before(b.blocked) {
		wait := max(b.blocked.Sub(now).Round(time.Second), time.Second)
		return false, "冷却中，请 " + wait.String() + " 后再发言"
	}

	secondOK, minuteOK := b.take(now)
	switch {
	case !minuteOK:
		b.blocked = now.Add(cl.cooldown)
		return false, "一分钟内发言太多，先休息一下吧"
	case !secondOK:
		b.blocked = now.Add(cl.cooldown)
		return false, "发言太快了，请稍后再试"
	}
	return true, ""
}

// OriginChecker WebSocket 来源校验，"*" 放行所有来源
type OriginChecker struct {
	allowed  map[string]struct{}
	allowAll bool
}

// NewOriginChecker 创建来源校验器
func NewOriginChecker(origins []string) *OriginChecker {
	oc := &OriginChecker{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(o), "/"))
		if o == "*" {
			oc.allowAll = true
		}
		oc.allowed[o] = struct{}{}
	}
	return oc
}

// Check 请求来源是否允许；没有 Origin 头的非浏览器客户端直接放行
func (oc *OriginChecker) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if oc.allowAll || origin == "" {
		return true
	}
	_, ok := oc.allowed[strings.ToLower(origin)]
	return ok
}

// IPFilter 按配置的白名单和黑名单过滤连接，条目可以是单个 IP 或 CIDR
//
// 黑名单优先；白名单非空时只放行白名单内的地址。
type IPFilter struct {
	allow []netip.Prefix
	deny  []netip.Prefix
}

// NewIPFilter 创建 IP 过滤器，无法解析的条目记录警告后忽略
func NewIPFilter(whitelist, blacklist []string) *IPFilter {
	return &IPFilter{
		allow: parsePrefixes(whitelist),
		deny:  parsePrefixes(blacklist),
	}
}

func parsePrefixes(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		p, err := parsePrefix(e)
		if err != nil {
			log.Warn().Err(err).Str("entry", e).Msg("⚠️ 忽略无效的 IP 过滤条目")
			continue
		}
		out = append(out, p)
	}
	return out
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		return p.Masked(), err
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// IsAllowed 该 IP 是否允许连接
func (f *IPFilter) IsAllowed(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return len(f.allow) == 0 && len(f.deny) == 0
	}
	addr = addr.Unmap()

	if containsAddr(f.deny, addr) {
		return false
	}
	return len(f.allow) == 0 || containsAddr(f.allow, addr)
}

func containsAddr(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetClientIP 客户端 IP，优先取代理头
func GetClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
