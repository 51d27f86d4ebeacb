package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPolicyHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yml")
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  freeWindow: 12h\n  guestOrderLimit: 1\n"), 0o600))

	holder, err := NewPolicyHolder(Config{PolicyPath: path}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, holder.Get().FreeWindow)
	assert.Equal(t, 1, holder.Get().GuestOrderLimit)
}

func TestValidateQuotaPolicy(t *testing.T) {
	assert.NoError(t, validateQuotaPolicy(DefaultQuotaPolicy()))
	assert.Error(t, validateQuotaPolicy(QuotaPolicy{FreeWindow: 0, GuestOrderLimit: 1}))
	assert.Error(t, validateQuotaPolicy(QuotaPolicy{FreeWindow: time.Hour, GuestOrderLimit: 0}))
}
