package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/techstore/internal/domain/auth"
)

// HeaderAPIKey carries the admin API key.
const HeaderAPIKey = "X-API-Key"

type apiKeyCtxKey struct{}

func apiKeyFromContext(ctx context.Context) *auth.APIKeyInfo {
	info, _ := ctx.Value(apiKeyCtxKey{}).(*auth.APIKeyInfo)
	return info
}

// requireAPIKey rejects requests without a valid API key with 401.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderAPIKey)
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}

		info, err := h.auth.Authenticate(r.Context(), key)
		if err != nil {
			zctx.From(r.Context()).Debug("API key rejected", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
