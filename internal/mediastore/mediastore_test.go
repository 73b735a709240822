package mediastore

import (
	"context"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/CalCounter/internal/util"
)

func TestNewValidatesConfig(t *testing.T) {
	valid := Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "media"}

	_, err := New(valid)
	require.NoError(t, err)

	for name, mutate := range map[string]func(*Config){
		"endpoint": func(c *Config) { c.Endpoint = " " },
		"keys":     func(c *Config) { c.SecretKey = "" },
		"bucket":   func(c *Config) { c.Bucket = "" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg, err := normalize(Config{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, DefaultExpiry, cfg.Expiry)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "5491100000000/abc-chart.png", objectKey("+5491100000000", "abc", "chart.png"))
	assert.Equal(t, "_/abc-.._etc_passwd", objectKey("..", "abc", "../etc/passwd"))
}

// TestPublishRoundTrip runs against a real bucket when MINIO_ENDPOINT is set.
func TestPublishRoundTrip(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}
	s, err := New(Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    "calcounter-test",
		UseSSL:    util.ParseBoolEnv("MINIO_USE_SSL", false),
		Expiry:    time.Minute,
	})
	require.NoError(t, err)

	ctx := context.Background()
	url, err := s.Publish(ctx, "+1", "hello.txt", "text/plain", []byte("hola"))
	require.NoError(t, err)

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hola", string(body))
}
