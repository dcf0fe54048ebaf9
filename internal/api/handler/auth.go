package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "flagwatch"
	operatorKey   = "operator"
	sessionClaim  = "sid"
	operatorClaim = "operator"
)

// generateJWT signs an operator token.
func (h *Handler) generateJWT(operator string) (string, error) {
	claims := jwt.MapClaims{
		operatorClaim: operator,
		sessionClaim:  uuid.NewString(),
		"exp":         time.Now().Add(h.tokenTTL).Unix(),
		"iss":         tokenIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}

func (h *Handler) validateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return h.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims")
	}
	operator, _ := claims[operatorClaim].(string)
	if operator == "" {
		return "", errors.New("token has no operator")
	}
	return operator, nil
}

type tokenRequest struct {
	Secret   string `json:"secret" binding:"required"`
	Operator string `json:"operator" binding:"required,max=64"`
}

// IssueToken exchanges the shared secret for a signed operator token.
func (h *Handler) IssueToken(c *gin.Context) {
	if len(h.secret) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token issuance is disabled"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), h.secret) != 1 {
		h.logger.WithField("operator", req.Operator).Warn("Rejected token request")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret"})
		return
	}

	token, err := h.generateJWT(req.Operator)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}
	h.logger.WithField("operator", req.Operator).Info("Operator token issued")
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(h.tokenTTL.Seconds())})
}

// RequireToken accepts "Authorization: Bearer <token>" or, for WebSocket clients, ?token=.
func (h *Handler) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if tokenString == "" || len(h.secret) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}

		operator, err := h.validateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		c.Set(operatorKey, operator)
		c.Next()
	}
}
