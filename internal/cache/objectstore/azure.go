package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/arx-os/mapcache/internal/cache"
	"github.com/arx-os/mapcache/internal/tile"
)

// Azure is the Azure Blob Storage cache back-end, grounded on
// internal/storage/azure.go's NewAzureBackend/Get/Put/Delete.
type Azure struct {
	client        *azblob.Client
	ContainerName string
	KeyTemplate   string
}

type AzureConfig struct {
	AccountName       string
	AccountKey        string
	ContainerName     string
	ConnectionString  string
	KeyTemplate       string
}

func NewAzure(ctx context.Context, cfg AzureConfig) (*Azure, error) {
	var client *azblob.Client
	var err error

	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountKey != "":
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("objectstore: azure credentials: %w", err)
		}
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	default:
		return nil, fmt.Errorf("objectstore: azure: no authentication method provided")
	}
	if err != nil {
		return nil, fmt.Errorf("objectstore: azure client: %w", err)
	}

	if _, err := client.ServiceClient().NewContainerClient(cfg.ContainerName).GetProperties(ctx, nil); err != nil {
		return nil, fmt.Errorf("objectstore: azure container %s: %w", cfg.ContainerName, err)
	}

	return &Azure{client: client, ContainerName: cfg.ContainerName, KeyTemplate: cfg.KeyTemplate}, nil
}

func (a *Azure) Name() string { return "azureblob" }

func (a *Azure) key(t *tile.Tile) string { return objectKey(a.KeyTemplate, t, tileFormat(t)) }

func (a *Azure) TileGet(ctx context.Context, t *tile.Tile) (cache.Entry, cache.Result, error) {
	blob := a.client.ServiceClient().NewContainerClient(a.ContainerName).NewBlobClient(a.key(t))
	resp, err := blob.DownloadStream(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return cache.Entry{}, cache.Miss, nil
		}
		return cache.Entry{}, cache.Miss, fmt.Errorf("objectstore: azure get: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return cache.Entry{}, cache.Miss, fmt.Errorf("objectstore: azure read: %w", err)
	}
	e := cache.Entry{Data: data}
	if resp.LastModified != nil {
		e.Mtime = *resp.LastModified
	}
	return e, cache.Hit, nil
}

func (a *Azure) TileSet(ctx context.Context, t *tile.Tile, e cache.Entry) error {
	_, err := a.client.UploadBuffer(ctx, a.ContainerName, a.key(t), e.Data, nil)
	if err != nil {
		return fmt.Errorf("objectstore: azure put: %w", err)
	}
	return nil
}

func (a *Azure) TileExists(ctx context.Context, t *tile.Tile) (bool, error) {
	blob := a.client.ServiceClient().NewContainerClient(a.ContainerName).NewBlobClient(a.key(t))
	_, err := blob.GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("objectstore: azure properties: %w", err)
	}
	return true, nil
}

func (a *Azure) TileDelete(ctx context.Context, t *tile.Tile) error {
	_, err := a.client.DeleteBlob(ctx, a.ContainerName, a.key(t), nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil
		}
		return fmt.Errorf("objectstore: azure delete: %w", err)
	}
	return nil
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == 404
	}
	return false
}
