// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Token is a bearer credential issued by the backend.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

// User is the registration response.
type User struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Token Token  `json:"token"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and returns it along with a user token.
func (c *Client) Register(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/register",
		jsonBody: registerRequest{Email: strings.TrimSpace(email), Password: password},
	}, &user)
	if err != nil {
		return nil, &AuthError{Op: "register", Err: err}
	}
	if user.Token.AccessToken == "" {
		return nil, &AuthError{Op: "register", Err: errors.New("response carried no token")}
	}
	return &user, nil
}

// Login exchanges credentials for a user token. The backend expects an
// OAuth2 password-grant form.
func (c *Client) Login(ctx context.Context, email, password string) (*Token, error) {
	form := url.Values{}
	form.Set("username", strings.TrimSpace(email))
	form.Set("password", password)
	form.Set("grant_type", "password")

	var tok Token
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/auth/login",
		formBody: form,
	}, &tok)
	if err != nil {
		return nil, &AuthError{Op: "login", Err: err}
	}
	if tok.AccessToken == "" {
		return nil, &AuthError{Op: "login", Err: errors.New("response carried no token")}
	}
	return &tok, nil
}
