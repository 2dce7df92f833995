package remotestore

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
)

// Credentials yields an OAuth2 token source for the Drive client. The two
// strategies below replace the historical pair of near-identical clients
// (service-account vs refresh-token) with one client and pluggable auth.
type Credentials interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// ServiceAccountCredentials authenticates with a service-account key file.
type ServiceAccountCredentials struct {
	KeyFile string
}

// TokenSource builds a JWT token source from the key file.
func (c ServiceAccountCredentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}
	cfg, err := google.JWTConfigFromJSON(data, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return cfg.TokenSource(ctx), nil
}

// RefreshTokenCredentials authenticates with an OAuth client and a
// long-lived refresh token.
type RefreshTokenCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// TokenSource builds a self-refreshing token source.
func (c RefreshTokenCredentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return nil, fmt.Errorf("refresh token credentials incomplete")
	}
	conf := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveScope},
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: c.RefreshToken}), nil
}
