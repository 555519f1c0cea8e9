package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "documents/01/page-plan.json", strings.NewReader(`{"rows":[]}`)))

	rc, err := s.Get(ctx, "documents/01/page-plan.json")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `{"rows":[]}`, string(body))

	assert.Equal(t, "http://localhost:8080/files/documents/01/page-plan.json", s.URL("documents/01/page-plan.json"))

	require.NoError(t, s.Delete(ctx, "documents/01/page-plan.json"))
	_, err = s.Get(ctx, "documents/01/page-plan.json")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "documents/01/page-plan.json"), "deleting a missing object is not an error")
}

func TestLocalStorage_StaysInsideBaseDir(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(base, "")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "../../escape.json", strings.NewReader("x")))
	rc, err := s.Get(ctx, "escape.json")
	require.NoError(t, err)
	rc.Close()

	assert.Error(t, s.Put(ctx, "/", strings.NewReader("x")))
}

func TestCalculateSHA256(t *testing.T) {
	sum, err := CalculateSHA256(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)
}

func TestAssetPolicy_ValidateFile(t *testing.T) {
	p := ImagePolicy()

	tests := []struct {
		name        string
		file        string
		contentType string
		size        int64
		wantErr     bool
	}{
		{"png", "logo.png", "image/png", 1024, false},
		{"upper-case extension", "LOGO.PNG", "image/png", 1024, false},
		{"content type with params", "logo.svg", "image/svg+xml; charset=utf-8", 10, false},
		{"too large", "logo.png", "image/png", 3 * 1024 * 1024, true},
		{"wrong mime", "logo.png", "application/pdf", 10, true},
		{"wrong extension", "logo.exe", "image/png", 10, true},
		{"no extension", "logo", "image/png", 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.ValidateFile(tt.file, tt.contentType, tt.size)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	var none *AssetPolicy
	assert.NoError(t, none.ValidateFile("anything.bin", "application/octet-stream", 1<<30))
}

func TestAssetPolicy_Wildcard(t *testing.T) {
	p := &AssetPolicy{MimeTypes: []string{"image/*"}}
	assert.NoError(t, p.ValidateFile("a.tiff", "image/tiff", 1))
	assert.Error(t, p.ValidateFile("a.txt", "text/plain", 1))
}

func TestPutAsset(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	meta, err := PutAsset(ctx, s, ImagePolicy(), "assets/logo.png", "logo.png", "image/png", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), meta.Size)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", meta.SHA256)
	assert.Equal(t, "http://localhost:8080/files/assets/logo.png", meta.URL)

	policy := &AssetPolicy{MaxFileMB: 0.000001}
	_, err = PutAsset(ctx, s, policy, "assets/big.png", "big.png", "image/png", strings.NewReader("more than one byte"))
	assert.Error(t, err)
	_, err = s.Get(ctx, "assets/big.png")
	assert.ErrorIs(t, err, ErrNotFound)
}
