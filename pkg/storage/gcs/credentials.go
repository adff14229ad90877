package gcs

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
)

const storageScope = "https://www.googleapis.com/auth/devstorage.read_write"

// credentialsJSON returns the configured key material: inline JSON first,
// then a key file. Nil means ambient credentials.
func credentialsJSON(gcp config.GCPConfig) ([]byte, error) {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []byte(raw), nil
	}
	path := strings.TrimSpace(gcp.ApplicationCredentials)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gcp credentials file: %w", err)
	}
	return raw, nil
}

func loadCredentials(ctx context.Context, raw []byte) (*google.Credentials, error) {
	if raw == nil {
		creds, err := google.FindDefaultCredentials(ctx, storageScope)
		if err != nil {
			return nil, fmt.Errorf("find default gcp credentials: %w", err)
		}
		return creds, nil
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, storageScope)
	if err != nil {
		return nil, fmt.Errorf("parse gcp credentials: %w", err)
	}
	return creds, nil
}
