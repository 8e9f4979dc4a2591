package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/palemoky/treasure-hunt/internal/game/room"
	"github.com/palemoky/treasure-hunt/internal/server/storage"
)

const (
	qrSize = 320

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	apiTimeout = 3 * time.Second
)

var errLeaderboardDisabled = errors.New("排行榜未启用")

// Routes HTTP 路由
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms", s.handleRooms)
		r.Get("/rooms/{roomID}/qr", s.handleRoomQR)
		r.Get("/games", s.handleGames)
		r.Get("/history", s.handleHistory)
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	return r
}

// handleHealth 健康检查接口
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if s.IsMaintenanceMode() {
		status = "maintenance"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"online": s.GetOnlineCount(),
		"rooms":  s.roomManager.RoomCount(),
		"games":  s.roomManager.GetActiveGamesCount(),
	})
}

// handleRooms 等待中的房间
func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"rooms": s.roomManager.GetRoomList(),
	})
}

// handleGames 进行中的游戏
func (s *Server) handleGames(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"games": s.roomManager.GetOngoingGames(),
	})
}

// handleRoomQR 生成加入房间链接的二维码
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	code := room.NormalizeCode(chi.URLParam(r, "roomID"))
	if s.roomManager.GetRoom(code) == nil {
		respondError(w, http.StatusNotFound, errors.New("房间不存在"))
		return
	}

	png, err := qrcode.Encode(s.joinURL(r, code), qrcode.Medium, qrSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// joinURL 加入房间的链接，未配置 public_url 时按请求推断
func (s *Server) joinURL(r *http.Request, code string) string {
	base := strings.TrimSuffix(s.config.Server.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + url.QueryEscape(code)
}

// handleHistory 最近的对局归档
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultHistoryLimit, maxHistoryLimit)

	records, err := s.history.Recent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []storage.GameRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total":   s.history.Count(),
		"records": records,
	})
}

// handleLeaderboard 总排行榜
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.leaderboard == nil {
		respondError(w, http.StatusServiceUnavailable, errLeaderboardDisabled)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
	defer cancel()

	entries, err := s.leaderboard.GetLeaderboard(ctx, storage.LeaderboardTotal, queryLimit(r, 10, 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []storage.LeaderboardEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
	})
}

func queryLimit(r *http.Request, def, maxLimit int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode json response")
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
