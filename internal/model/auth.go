package model

import "github.com/golang-jwt/jwt/v5"

// OpsClaims are JWT claims for ops portal staff
type OpsClaims struct {
	OperatorID string `json:"operatorId"`
	jwt.RegisteredClaims
}

// SessionClaims are JWT claims scoped to one quiz session
type SessionClaims struct {
	SessionID string `json:"sessionId"`
	QuizID    string `json:"quizId"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for ops login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful login
type LoginResponse struct {
	Token      string `json:"token"`
	OperatorID string `json:"operatorId"`
}
