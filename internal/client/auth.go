package client

import (
	"context"
	"fmt"
	"net/http"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	Message     string `json:"message,omitempty"`
}

// BearerToken returns whichever token field the backend filled in.
func (t TokenResponse) BearerToken() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.Token
}

type User struct {
	User     string `json:"user,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (u User) Name() string {
	if u.Username != "" {
		return u.Username
	}
	return u.User
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login exchanges credentials for a bearer token and stores it.
func (c *Client) Login(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	var tr TokenResponse
	_, err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		route:  "/api/v1/auth/login",
		path:   "/api/v1/auth/login",
		body:   creds,
		noAuth: true,
	}, &tr)
	if err != nil {
		return nil, err
	}
	if err := c.storeToken(tr.BearerToken()); err != nil {
		return &tr, err
	}
	return &tr, nil
}

// Logout tells the backend and always forgets the local token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, request{
		op:        "logout",
		method:    http.MethodPost,
		route:     "/api/v1/auth/logout",
		path:      "/api/v1/auth/logout",
		noRefresh: true,
	}, nil)
	if c.tokens != nil {
		if clearErr := c.tokens.Clear(); clearErr != nil && err == nil {
			err = fmt.Errorf("clear token: %w", clearErr)
		}
	}
	return err
}

func (c *Client) Refresh(ctx context.Context) (*TokenResponse, error) {
	var tr TokenResponse
	_, err := c.do(ctx, request{
		op:        "refresh",
		method:    http.MethodPost,
		route:     "/api/v1/auth/refresh",
		path:      "/api/v1/auth/refresh",
		noRefresh: true,
	}, &tr)
	if err != nil {
		return nil, err
	}
	if err := c.storeToken(tr.BearerToken()); err != nil {
		return &tr, err
	}
	return &tr, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	_, err := c.do(ctx, request{
		op:     "me",
		method: http.MethodGet,
		route:  "/api/v1/auth/me",
		path:   "/api/v1/auth/me",
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ChangePassword(ctx context.Context, change PasswordChange) error {
	if change.NewPassword == "" {
		return fmt.Errorf("new password must not be empty")
	}
	_, err := c.do(ctx, request{
		op:     "change_password",
		method: http.MethodPost,
		route:  "/api/v1/auth/change-password",
		path:   "/api/v1/auth/change-password",
		body:   change,
	}, nil)
	return err
}

func (c *Client) storeToken(token string) error {
	if token == "" || c.tokens == nil {
		return nil
	}
	if err := c.tokens.SetToken(token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}
