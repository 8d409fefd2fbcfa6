package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ismagro/portal/internal/auth"
	"github.com/ismagro/portal/internal/service"
)

type contextKey string

const contextKeyClaims contextKey = "claims"

// Auth valida o JWT de acesso e injeta o retrato do usuário no contexto.
// O retrato não é reconferido no banco a cada requisição: com TTL de uma
// hora, aceita-se que status/papel fiquem defasados até a expiração.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(parts[1])
			if err != nil {
				msg := "token inválido"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expirado"
				}
				writeError(w, http.StatusUnauthorized, "AUTH", msg)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims recupera o retrato do usuário autenticado.
func GetClaims(ctx context.Context) *auth.Claims {
	val, _ := ctx.Value(contextKeyClaims).(*auth.Claims)
	return val
}

// GetUsuarioID recupera o id numérico do subject; zero quando ausente.
func GetUsuarioID(ctx context.Context) int64 {
	claims := GetClaims(ctx)
	if claims == nil {
		return 0
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// RequirePapeis restringe a rota aos papéis informados.
func RequirePapeis(permitidos []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil || !service.Autorizar(claims.Role, permitidos) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "acesso restrito")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
