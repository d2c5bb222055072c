package model

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const shareRefPrefix = "share_"

// ShareCommand returns the chat command that opens a share.
func ShareCommand(id ShareID) string {
	return "/" + shareRefPrefix + string(id)
}

// ShareLink returns the deep link that opens a share in the bot.
func ShareLink(botUsername string, id ShareID) string {
	q := url.Values{}
	q.Set("start", shareRefPrefix+string(id))
	return fmt.Sprintf("https://t.me/%s?%s", url.PathEscape(botUsername), q.Encode())
}

// ParseShareRef extracts a share id from a command argument, a chat command
// ("/share_<id>", "/share_<id>@bot", "/start share_<id>") or a deep link.
func ParseShareRef(ref string) (ShareID, error) {
	s := strings.TrimSpace(ref)

	if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("malformed share reference %q: %w", ref, ErrNotFound)
		}
		s = u.Query().Get("start")
	}

	s = strings.TrimPrefix(s, "/start")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "/")
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	}

	raw, ok := strings.CutPrefix(s, shareRefPrefix)
	if !ok {
		return "", fmt.Errorf("malformed share reference %q: %w", ref, ErrNotFound)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("malformed share reference %q: %w", ref, ErrNotFound)
	}

	return ShareID(id.String()), nil
}
