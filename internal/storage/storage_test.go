package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trinetra/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"degree.pdf":             "degree.pdf",
		"../../etc/passwd":       "passwd",
		`C:\Users\me\scan 1.jpg`: "scan_1.jpg",
		"":                       "file",
		"résumé final.pdf":       "r_sum_final.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeName(in), in)
	}
}

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1718000000000)
	assert.Equal(t, "address_proofs/1718000000000_bill.pdf", ObjectKey("address_proofs", "bill.pdf", now))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080/files/")
	require.NoError(t, err)

	url, err := store.Put(ctx, "reports/asha_bgv.pdf", []byte("%PDF-1.3"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/reports/asha_bgv.pdf", url)

	data, err := os.ReadFile(filepath.Join(store.Root(), "reports", "asha_bgv.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	key, ok := store.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "reports/asha_bgv.pdf", key)

	_, ok = store.KeyFromURL("https://elsewhere.example.com/reports/asha_bgv.pdf")
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "deleting a missing file is not an error")

	t.Run("keys cannot escape the root", func(t *testing.T) {
		_, err := store.Put(ctx, "../../outside.txt", []byte("x"), "text/plain")
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(store.Root(), "outside.txt"))
		assert.NoError(t, err)
	})
}

func TestSaveDataURL(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)

	stored, err := SaveDataURL(ctx, store, "data:image/png;base64,aGVsbG8=", "signatures", "sig_tok_draft")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Key, "signatures/sig_tok_draft_"))
	assert.True(t, strings.HasSuffix(stored.URL, ".png"))

	data, err := os.ReadFile(filepath.Join(store.Root(), filepath.FromSlash(stored.Key)))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = SaveDataURL(ctx, store, "not-a-data-url", "signatures", "x")
	var vErr *types.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestMultipartUploads(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("addressDoc_0", "bill.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("bill contents"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("jsonData", "{}"))
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)

	store, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)

	uploads := NewMultipartUploads(form, store)
	assert.True(t, uploads.Has("addressDoc_0"))
	assert.False(t, uploads.Has("addressDoc_1"))

	stored, err := uploads.Save(context.Background(), "addressDoc_0", "address_proofs")
	require.NoError(t, err)
	assert.Equal(t, "bill.pdf", stored.OriginalFilename)
	assert.True(t, strings.HasPrefix(stored.URL, "/files/address_proofs/"))

	_, err = uploads.Save(context.Background(), "addressDoc_1", "address_proofs")
	assert.Error(t, err)
}

func TestSupabaseStore(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewSupabaseStore(srv.URL, "service-key", "trinetra")

	url, err := store.Put(context.Background(), "reports/a.pdf", []byte("pdf"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "POST /storage/v1/object/trinetra/reports/a.pdf", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "pdf", gotBody)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/trinetra/reports/a.pdf", url)

	key, ok := store.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "reports/a.pdf", key)

	require.NoError(t, store.Delete(context.Background(), key))
	assert.Equal(t, "DELETE /storage/v1/object/trinetra/reports/a.pdf", gotPath)
}
