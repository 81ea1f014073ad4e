package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "go-image-forensics/internal/errors"
)

// AzureStore keeps artifacts as blobs named "<dir>/<name>" in one container
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore authenticates with a shared key
func NewAzureStore(accountName, accountKey, container string) (*AzureStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid Azure credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("cannot create Azure client", err)
	}

	return &AzureStore{client: client, container: container}, nil
}

// Put uploads the artifact in a single request
func (s *AzureStore) Put(ctx context.Context, dir, name string, data []byte) (string, error) {
	if err := checkName(dir, name); err != nil {
		return "", err
	}
	blobName := path.Join(dir, name)
	if _, err := s.client.UploadBuffer(ctx, s.container, blobName, data, nil); err != nil {
		return "", apperrors.NewIOError("blob upload failed", err)
	}
	return blobName, nil
}

// Get downloads an artifact blob
func (s *AzureStore) Get(ctx context.Context, dir, name string) ([]byte, error) {
	if err := checkName(dir, name); err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, s.container, path.Join(dir, name), nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, apperrors.NewIOError("blob download failed", err)
	}

	retryReader := resp.Body
	defer retryReader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, retryReader); err != nil {
		return nil, apperrors.NewIOError("blob read failed", err)
	}
	return buf.Bytes(), nil
}
