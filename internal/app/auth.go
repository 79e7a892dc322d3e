package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer     = "roster-service"
	identityCtxKey  = "identity"
	defaultTokenTTL = 12 * time.Hour

	// OAuth state tokens carry this audience; session tokens carry none.
	oauthStateAudience = "calendar-oauth-state"
	oauthStateTTL      = 10 * time.Minute
)

var ErrInvalidState = errors.New("invalid oauth state")

type Claims struct {
	Role Role   `json:"role"`
	Team string `json:"team"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (ti *TokenIssuer) Issue(id *Identity) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)
	claims := Claims{
		Role: id.Role,
		Team: id.Team,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.Username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (ti *TokenIssuer) Parse(tokenStr string) (*Identity, error) {
	claims, err := ti.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if len(claims.Audience) > 0 {
		return nil, errors.New("not a session token")
	}
	return &Identity{Username: claims.Subject, Role: claims.Role, Team: claims.Team}, nil
}

// IssueState signs the OAuth state for a consent flow started by username.
func (ti *TokenIssuer) IssueState(username string) (string, error) {
	now := ti.now()
	claims := Claims{
		Role: RoleManager,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{oauthStateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(oauthStateTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

// ParseState verifies a state issued by IssueState and returns the manager
// who started the flow.
func (ti *TokenIssuer) ParseState(state string) (string, error) {
	if state == "" {
		return "", ErrInvalidState
	}
	claims, err := ti.parse(state, jwt.WithAudience(oauthStateAudience))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return claims.Subject, nil
}

func (ti *TokenIssuer) parse(tokenStr string, opts ...jwt.ParserOption) (*Claims, error) {
	var claims Claims
	opts = append([]jwt.ParserOption{
		jwt.WithLeeway(5 * time.Second),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(ti.now),
	}, opts...)
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return ti.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &claims, nil
}

// AuthMiddleware requires a valid bearer token and stores the caller's
// identity on the context.
func (a *App) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		id, err := a.Tokens.Parse(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(identityCtxKey, id)
		c.Next()
	}
}

// RequireManager must run after AuthMiddleware.
func RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := currentIdentity(c); id == nil || id.Role != RoleManager {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "manager role required"})
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) *Identity {
	v, ok := c.Get(identityCtxKey)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}
