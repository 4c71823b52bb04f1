package services

import (
	"fmt"
	"pulse-chat/auth"
	"pulse-chat/errors"
	"pulse-chat/repositories"
)

type IAuthService interface {
	Login(email, password string) (Token, error)
	Register(email, password string) (Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	authenticator  *auth.Authenticator
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(repo repositories.IUserRepository, authenticator *auth.Authenticator) IAuthService {
	return &AuthService{userRepository: repo, authenticator: authenticator}
}

func (s *AuthService) Register(email, password string) (Token, error) {
	// Business rules first, before any expensive hashing
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Password: password}); err != nil {
		return "", err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	// Propagates ErrUserAlreadyExists when the email is taken
	userID, err := s.userRepository.CreateUser(email, hashedPassword)
	if err != nil {
		return "", err
	}

	token, err := s.authenticator.GenerateToken(userID, []string{"user"})
	if err != nil {
		return "", err
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Same error whatever failed, no user enumeration
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.authenticator.GenerateToken(user.ID, user.Roles)
	if err != nil {
		return "", err
	}
	return Token(token), nil
}
