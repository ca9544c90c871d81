package api

import (
	"errors"
	"net/http"
	"strings"
)

// ExtractAPIKey returns the Notion token from "Authorization: Bearer <token>".
// A missing header yields an empty key so the configured token provider
// applies.
func ExtractAPIKey(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid Authorization header format, expected 'Bearer <api_key>'")
	}
	return parts[1], nil
}
