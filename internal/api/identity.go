package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Shivansh-2508/AI-DB/internal/assistant"
	"github.com/Shivansh-2508/AI-DB/internal/auth"
	"github.com/Shivansh-2508/AI-DB/internal/config"
)

const identityHeader = "X-User-ID"

// requesterFromRequest resolves the caller. Authenticated identities win;
// outside prod the X-User-ID header stands in for an identity provider.
func requesterFromRequest(cfg config.Config, r *http.Request, session string) (assistant.Requester, error) {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && strings.TrimSpace(identity.Subject) != "" {
		return assistant.Requester{
			Identity: identity.Subject,
			Session:  normalizeSession(session),
			Roles:    append([]string(nil), identity.Roles...),
		}, nil
	}
	if cfg.Profile != config.ProfileProd {
		if subject := strings.TrimSpace(r.Header.Get(identityHeader)); subject != "" {
			return assistant.Requester{Identity: subject, Session: normalizeSession(session)}, nil
		}
	}
	return assistant.Requester{}, fmt.Errorf("identity is required")
}

func normalizeSession(session string) string {
	session = strings.TrimSpace(session)
	if session == "" {
		return assistant.DefaultSession
	}
	return session
}

// sessionFromBody accepts the session key spellings older clients send.
func sessionFromBody(body map[string]any) string {
	return firstString(body, "session_id", "sessionId", "session")
}

func firstString(body map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := body[key]
		if !ok || value == nil {
			continue
		}
		switch typed := value.(type) {
		case string:
			if strings.TrimSpace(typed) != "" {
				return strings.TrimSpace(typed)
			}
		case float64:
			return strconv.FormatFloat(typed, 'f', -1, 64)
		}
	}
	return ""
}
