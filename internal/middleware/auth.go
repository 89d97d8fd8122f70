package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/ndthang/examcore/internal/dto"
	"github.com/ndthang/examcore/internal/model"
	"github.com/pkg/errors"
)

const actorContextKey = "actor"

// AuthRequired validates the bearer token and stores the resolved actor
// (user id plus tenant scope) in the request context. Tokens carry user_id
// and org_id claims; branch_id is optional.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "missing bearer token"})
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "invalid token"})
			return
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: err.Error()})
			return
		}
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

func actorFromClaims(claims jwt.MapClaims) (dto.Actor, error) {
	userID, err := claimUUID(claims, "user_id")
	if err != nil {
		return dto.Actor{}, err
	}
	orgID, err := claimUUID(claims, "org_id")
	if err != nil {
		return dto.Actor{}, err
	}

	actor := dto.Actor{
		UserID: userID,
		Scope:  model.Scope{OrganizationID: orgID},
	}
	if raw, ok := claims["branch_id"].(string); ok && raw != "" {
		branchID, err := uuid.Parse(raw)
		if err != nil {
			return dto.Actor{}, errors.Wrap(err, "invalid branch_id claim")
		}
		actor.Scope.BranchID = &branchID
	}
	return actor, nil
}

func claimUUID(claims jwt.MapClaims, name string) (uuid.UUID, error) {
	raw, ok := claims[name].(string)
	if !ok {
		return uuid.Nil, errors.Errorf("missing %s claim", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "invalid %s claim", name)
	}
	return id, nil
}

// GetActor returns the actor placed in the context by AuthRequired.
func GetActor(c *gin.Context) (dto.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return dto.Actor{}, false
	}
	actor, ok := v.(dto.Actor)
	return actor, ok
}
