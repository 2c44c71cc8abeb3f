package devserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"delivery/internal/model"
)

const ctxUser = "devserver.user"

type claims struct {
	Role model.Role `json:"tipo"`
	jwt.RegisteredClaims
}

func (s *Server) issueToken(u *user) (string, error) {
	now := s.now()
	c := claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    "delivery-devserver",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secretKey())
}

func (s *Server) secretKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secret
}

// RotateSecret invalidates every token issued so far.
func (s *Server) RotateSecret(secret string) {
	s.mu.Lock()
	s.secret = []byte(secret)
	s.mu.Unlock()
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "error": msg})
}

func (s *Server) requireToken(c *gin.Context) {
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || raw == "" {
		unauthorized(c, "Token ausente")
		return
	}
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (any, error) {
		return s.secretKey(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		unauthorized(c, "Token inválido ou expirado")
		return
	}
	id, err := strconv.ParseInt(cl.Subject, 10, 64)
	if err != nil {
		unauthorized(c, "Token inválido ou expirado")
		return
	}
	s.mu.Lock()
	u, ok := s.users[id]
	s.mu.Unlock()
	if !ok {
		unauthorized(c, "Usuário não encontrado")
		return
	}
	c.Set(ctxUser, u)
	c.Next()
}
