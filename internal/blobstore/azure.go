package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"visionary/internal/config"
)

// Azure stores blobs in an Azure Storage container.
type Azure struct {
	serviceURL    string
	container     string
	publicBaseURL string
	client        *azblob.Client
}

// NewAzure authenticates with the storage account shared key. The service
// URL defaults to the public endpoint for the account.
func NewAzure(cfg config.AzureStore, publicBaseURL string) (*Azure, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" || cfg.Container == "" {
		return nil, errors.New("azure account name, account key and container are required")
	}
	serviceURL := strings.TrimSuffix(cfg.ServiceURL, "/")
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL+"/", cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure client: %w", err)
	}
	return &Azure{
		serviceURL:    serviceURL,
		container:     cfg.Container,
		publicBaseURL: publicBaseURL,
		client:        client,
	}, nil
}

func (a *Azure) Put(ctx context.Context, pathname string, body []byte, contentType string) (BlobInfo, error) {
	pathname, err := cleanPathname(pathname)
	if err != nil {
		return BlobInfo{}, err
	}
	ct := contentType
	_, err = a.client.UploadBuffer(ctx, a.container, pathname, body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		return BlobInfo{}, fmt.Errorf("azure upload %s: %w", pathname, err)
	}
	fallback := a.serviceURL + "/" + a.container + "/" + pathname
	return BlobInfo{
		URL:         publicURL(a.publicBaseURL, pathname, fallback),
		Pathname:    pathname,
		ContentType: contentType,
		Size:        int64(len(body)),
		UploadedAt:  time.Now().UTC(),
	}, nil
}

func (a *Azure) Close() error { return nil }
