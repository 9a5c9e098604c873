package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/codearena/puzzleduel-backend/config"
	"github.com/codearena/puzzleduel-backend/db"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Service struct {
	db  *sql.DB
	cfg config.Config
}

func NewService(database *sql.DB, cfg config.Config) *Service {
	return &Service{
		db:  database,
		cfg: cfg,
	}
}

func (s *Service) Register(username, email, password string) (db.User, error) {
	if username == "" || password == "" {
		return db.User{}, fmt.Errorf("username and password cannot be empty")
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return db.User{}, err
	}

	query := "INSERT INTO users (username, email, password, created_at) VALUES ($1, $2, $3, $4) RETURNING id, username, email, created_at"
	var user db.User
	err = s.db.QueryRow(query, username, email, string(hashedPassword), time.Now()).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "users_username_key" {
				return db.User{}, fmt.Errorf("username already exists")
			}
			if pqErr.Constraint == "users_email_key" {
				return db.User{}, fmt.Errorf("email already exists")
			}
		}
		return db.User{}, err
	}
	return user, nil
}

func (s *Service) Login(username, password string) (string, error) {
	var user db.User
	err := s.db.QueryRow(`
		SELECT id, username, email, password, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt)

	if err != nil {
		return "", errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// VerifyToken validates a JWT and returns the authenticated user ID. This is
// the black-box identity check every protected surface goes through.
func (s *Service) VerifyToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return int64(userID), nil
}
