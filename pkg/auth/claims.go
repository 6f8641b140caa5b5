package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/resqlink/resqlink-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID  uuid.UUID
	Role    enums.ActorRole
	Phone   string
	GroupID *uuid.UUID
	FirmID  *uuid.UUID
	JTI     string
}

// AccessTokenClaims represents the typed JWT issued to clients. Members carry
// their group and phone; firm operators and admins carry their firm.
type AccessTokenClaims struct {
	UserID  uuid.UUID       `json:"user_id"`
	Role    enums.ActorRole `json:"role"`
	Phone   string          `json:"phone,omitempty"`
	GroupID *uuid.UUID      `json:"group_id,omitempty"`
	FirmID  *uuid.UUID      `json:"firm_id,omitempty"`
	jwt.RegisteredClaims
}
