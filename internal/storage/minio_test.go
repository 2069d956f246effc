package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sparcky/panel-api/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNewMinIOStorage_RequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), config.MinIOConfig{})
	require.Error(t, err)
}

func TestGetPresignedURL_IsOffline(t *testing.T) {
	// presigning with an explicit region needs no round-trip to the server
	mc, err := minio.New("minio.local:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("ak", "sk", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	s := &MinIOStorage{client: mc, bucket: "exports-bucket"}

	raw, err := s.GetPresignedURL(context.Background(), "exports/logs/1.json", 15*time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "minio.local:9000", u.Host)
	require.True(t, strings.HasSuffix(u.Path, "/exports-bucket/exports/logs/1.json"))
	require.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	require.Contains(t, u.Query().Get("response-content-disposition"), `"1.json"`)
}
