package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carrega o retrato do usuário no momento da emissão do token.
// O retrato pode ficar defasado em relação ao banco (ex.: conta inativada
// com sessão vigente); isso é aceito dado o TTL curto do token de acesso.
type Claims struct {
	Nome          string `json:"nome"`
	Login         string `json:"login"`
	Role          string `json:"role"`
	PrimeiroLogin bool   `json:"primeiro_login"`
	Status        string `json:"status_usuario"`
	jwt.RegisteredClaims
}

// JWTManager encapsula geração e validação de tokens.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewJWTManager cria o gerenciador com segredo e TTL configurados.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL}
}

// AccessTTL devolve a validade configurada para tokens de acesso.
func (m *JWTManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// Snapshot agrega os campos do usuário embutidos no token.
type Snapshot struct {
	Subject       string
	Nome          string
	Login         string
	Role          string
	PrimeiroLogin bool
	Status        string
}

// GenerateAccessToken cria um JWT HS256 com o retrato informado.
func (m *JWTManager) GenerateAccessToken(snap Snapshot) (string, string, error) {
	now := time.Now().UTC()
	jti := uuid.NewString()

	claims := Claims{
		Nome:          snap.Nome,
		Login:         snap.Login,
		Role:          snap.Role,
		PrimeiroLogin: snap.PrimeiroLogin,
		Status:        snap.Status,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   snap.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", "", err
	}

	return signed, jti, nil
}

// ParseAndValidate verifica assinatura e expiração.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token inválido")
	}

	return claims, nil
}
