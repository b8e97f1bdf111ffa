package auth

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verifier checks tokens presented at the registration boundary and
// extracts the authenticated user id from them.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Verify parses and validates an HS256 token and returns the user id
// carried in its subject claim.
func (v *Verifier) Verify(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return uuid.Nil, fmt.Errorf("token has no subject")
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token subject is not a user id: %w", err)
	}
	return userID, nil
}

// Issue mints a signed token for userID, valid for ttl.
func Issue(secret []byte, userID uuid.UUID, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("could not sign token: %w", err)
	}
	return signedToken, nil
}

// TokenHandler mints a 24h token for development and testing. The
// user_id query parameter picks the subject; a fresh one is generated
// when absent.
func TokenHandler(secret []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := uuid.New()
		if id := r.URL.Query().Get("user_id"); id != "" {
			parsed, err := uuid.Parse(id)
			if err != nil {
				http.Error(w, "Invalid user_id", http.StatusBadRequest)
				return
			}
			userID = parsed
		}

		tokenString, err := Issue(secret, userID, 24*time.Hour)
		if err != nil {
			log.Printf("Error creating signed token: %v", err)
			http.Error(w, "Failed to create token", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(tokenString))
	}
}
