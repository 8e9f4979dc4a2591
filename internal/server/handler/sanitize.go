package handler

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// maxNameLength 玩家名最大长度（字符）
const maxNameLength = 20

// textPolicy 玩家名和聊天都只允许纯文本
var textPolicy = bluemonday.StrictPolicy()

// sanitizeText 去掉 HTML 标签，返回纯文本
func sanitizeText(s string) string {
	clean := textPolicy.Sanitize(html.UnescapeString(s))
	// StrictPolicy 会转义 & < > 等字符，客户端按纯文本显示，这里还原
	return strings.TrimSpace(html.UnescapeString(clean))
}

// sanitizeName 清理玩家名并截断，结果可能为空
func sanitizeName(name string) string {
	clean := sanitizeText(name)
	if utf8.RuneCountInString(clean) > maxNameLength {
		clean = string([]rune(clean)[:maxNameLength])
	}
	return strings.TrimSpace(clean)
}
