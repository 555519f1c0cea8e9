package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// AssetMetadata describes a stored asset
type AssetMetadata struct {
	Name   string `json:"name"`
	Object string `json:"object"`
	URL    string `json:"url"`
	Size   int64  `json:"size"`
	MIME   string `json:"mime"`
	SHA256 string `json:"sha256"`
}

// PutAsset checks an upload against policy and stores it under objectName.
// The upload is buffered so the size limit and checksum hold for the bytes
// actually stored.
func PutAsset(ctx context.Context, s Storage, policy *AssetPolicy, objectName, fileName, contentType string, r io.Reader) (*AssetMetadata, error) {
	if max := policy.MaxBytes(); max > 0 {
		r = io.LimitReader(r, max+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := policy.ValidateFile(fileName, contentType, int64(len(data))); err != nil {
		return nil, err
	}

	sum, err := CalculateSHA256(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to hash upload: %w", err)
	}
	if err := s.Put(ctx, objectName, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to store asset: %w", err)
	}

	return &AssetMetadata{
		Name:   fileName,
		Object: objectName,
		URL:    s.URL(objectName),
		Size:   int64(len(data)),
		MIME:   contentType,
		SHA256: sum,
	}, nil
}
