package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const HeaderCaller = "X-Caller"

var ErrInvalidToken = errors.New("invalid token")

type ctxKey struct{}

// Claims do token de chamador; Subject é a identidade (jogador, owner, coordinator)
type Claims struct {
	jwt.RegisteredClaims
}

// Identity resolve quem está chamando.
// Sem segredo, confia no header X-Caller (ambiente local); com segredo, exige Bearer HS256.
type Identity struct {
	Secret []byte
}

// Issue assina um token para subject (usado pelo headsupctl e pelo simulador)
func Issue(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Enabled indica se há segredo (tokens obrigatórios)
func (i Identity) Enabled() bool { return len(i.Secret) > 0 }

// Verify valida um token HS256 e devolve o subject
func (i Identity) Verify(token string) (string, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.Secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Middleware grava o chamador no contexto; token inválido vira 401
func (i Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get(HeaderCaller)
		if len(i.Secret) > 0 {
			caller = ""
			if h := r.Header.Get("Authorization"); h != "" {
				sub, err := i.Verify(strings.TrimPrefix(h, "Bearer "))
				if err != nil {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"code":"InvalidToken","error":"invalid token"}`))
					return
				}
				caller = sub
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, caller)))
	})
}

// Caller retorna a identidade resolvida pelo Middleware ("" = anônimo)
func Caller(ctx context.Context) string {
	c, _ := ctx.Value(ctxKey{}).(string)
	return c
}

// Sign prepara uma requisição de saída com a identidade (token se houver segredo)
func Sign(req *http.Request, secret []byte, caller string) error {
	if caller == "" {
		return nil
	}
	if len(secret) == 0 {
		req.Header.Set(HeaderCaller, caller)
		return nil
	}
	tok, err := Issue(secret, caller, 5*time.Minute)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}
