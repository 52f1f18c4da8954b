package uploader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorscan/carhealth/internal/types/media"
)

// The backend has shipped several payload shapes for the same asset
// fields; the client must fold all of them into the canonical type so
// nothing above it ever branches on shape.
func TestListMedia_NormalizesPayloadShapes(t *testing.T) {
	body := `{"status":"OK","data":[
		{"id":"m-1","type":"photo","photo_type":"front","storage_url":"http://s/a.png","is_uploaded":true,"file_size":100},
		{"media_id":"m-2","media_type":"photo","photoType":"rear","storageUrl":"http://s/b.png","isUploaded":true,"fileSize":200},
		{"id":"m-3","type":"photo","angle":"left","url":"http://s/c.png"},
		{"id":"m-4","type":"video","storage_url":"http://s/d.mp4","is_uploaded":true,"duration":12.5}
	]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	assets, err := c.ListMedia(context.Background(), "car-1")
	require.NoError(t, err)
	require.Len(t, assets, 4)

	assert.Equal(t, "m-1", assets[0].ID)
	assert.Equal(t, media.PhotoFront, assets[0].PhotoType)
	assert.Equal(t, "http://s/a.png", assets[0].StorageURL)
	assert.True(t, assets[0].IsUploaded)
	assert.Equal(t, int64(100), assets[0].FileSize)

	assert.Equal(t, "m-2", assets[1].ID)
	assert.Equal(t, media.PhotoRear, assets[1].PhotoType)
	assert.Equal(t, "http://s/b.png", assets[1].StorageURL)
	assert.True(t, assets[1].IsUploaded)
	assert.Equal(t, int64(200), assets[1].FileSize)

	assert.Equal(t, media.PhotoLeft, assets[2].PhotoType)
	assert.Equal(t, "http://s/c.png", assets[2].StorageURL)
	assert.False(t, assets[2].IsUploaded)

	assert.Equal(t, media.TypeVideo, assets[3].Type)
	assert.Equal(t, 12.5, assets[3].Duration)
}

func TestDo_SurfacesServerErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"Error","error":"photo size exceeds maximum allowed size of 10MB"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.RequestUpload(context.Background(), "car-1", media.UploadRequest{
		Type: media.TypePhoto, FileName: "a.jpg", MimeType: "image/jpeg", FileSize: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "photo size exceeds maximum allowed size of 10MB")
}

func TestValidateMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cars/car-1/media/validate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","data":{"isValid":false,"missingPhotos":["engineBay"],"hasVideo":true,"warnings":["Missing required photos: Engine Bay"],"completionPercentage":86,"canSubmit":true}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	result, err := c.ValidateMedia(context.Background(), "car-1")
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.True(t, result.CanSubmit)
	assert.Equal(t, []media.PhotoType{media.PhotoEngineBay}, result.MissingPhotos)
	assert.Equal(t, 86, result.CompletionPercentage)
}
