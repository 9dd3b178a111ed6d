package firewall

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/homesync/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	store, err := NewFromConfig(ctx, config.CloudConfig{Provider: "aws", FileShim: "rules.json"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &FileShim{}, store)

	store, err = NewFromConfig(ctx, config.CloudConfig{
		Provider:        "aliyun",
		AccessKeyID:     "id",
		AccessKeySecret: "secret",
		APITimeout:      time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &AliyunStore{}, store)

	store, err = NewFromConfig(ctx, config.CloudConfig{
		Provider:        "aws",
		AccessKeyID:     "id",
		AccessKeySecret: "secret",
		APITimeout:      time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &AWSStore{}, store)

	_, err = NewFromConfig(ctx, config.CloudConfig{Provider: "gcp"}, zerolog.Nop())
	assert.Error(t, err)
}
