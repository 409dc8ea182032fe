package storage

import (
	"context"
	"fmt"

	"eduvid/internal/adapters/storage/gdrive"
	"eduvid/internal/adapters/storage/localfs"
	"eduvid/internal/pkg/env"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// NewProvider builds the configured storage provider.
// STORAGE_PROVIDER selects the backend: localfs (default) or gdrive.
func NewProvider() (Provider, error) {
	provider := env.Get("STORAGE_PROVIDER", "localfs")

	switch provider {
	case "localfs":
		root := env.Get("STORAGE_LOCAL_ROOT", "./data")
		return localfs.New(root), nil

	case "gdrive":
		return newGDriveProvider()

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", provider)
	}
}

func newGDriveProvider() (Provider, error) {
	ctx := context.Background()

	clientID := env.Must("GDRIVE_CLIENT_ID")
	clientSecret := env.Must("GDRIVE_CLIENT_SECRET")
	refreshToken := env.Must("GDRIVE_REFRESH_TOKEN")
	folderID := env.Get("GDRIVE_FOLDER_ID", "")

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: refreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return gdrive.NewClient(srv, folderID), nil
}
