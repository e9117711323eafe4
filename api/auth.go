// Package api provides typed wrappers for the LocalSpot backend endpoints.
// All wrappers speak JSON except review submissions with photos, which are
// multipart.
package api

import (
	"context"

	"github.com/localspot/localspot-go/client"
)

// User is the authenticated identity record.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Tokens is the credential pair issued by login and register.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"` // seconds
}

// AuthResponse is the payload of /auth/login and /auth/register.
type AuthResponse struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

// RefreshResponse is the payload of /auth/refresh. RefreshToken is optional:
// the server may or may not rotate it.
type RefreshResponse struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken *string `json:"refreshToken,omitempty"`
	ExpiresIn    int     `json:"expiresIn"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a user and token pair. The call never
// enters the 401 refresh path: a 401 here means bad credentials.
func Login(ctx context.Context, c *client.Client, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &resp, client.WithoutAuthRetry()); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account; same contract as Login.
func Register(ctx context.Context, c *client.Client, name, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Post(ctx, "/auth/register", registerRequest{Name: name, Email: email, Password: password}, &resp, client.WithoutAuthRetry()); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout notifies the server, best-effort. The response and any error are
// ignored; local logout must succeed regardless.
func Logout(ctx context.Context, c *client.Client) {
	_ = c.Post(ctx, "/auth/logout", struct{}{}, nil, client.WithoutAuthRetry())
}

// RefreshTokens exchanges a refresh token for new credentials.
func RefreshTokens(ctx context.Context, c *client.Client, refreshToken string) (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.Post(ctx, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &resp, client.WithoutAuthRetry()); err != nil {
		return nil, err
	}
	return &resp, nil
}
