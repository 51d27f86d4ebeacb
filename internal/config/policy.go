package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// QuotaPolicy controls request admission limits.
type QuotaPolicy struct {
	FreeWindow      time.Duration `mapstructure:"freeWindow"`
	GuestOrderLimit int           `mapstructure:"guestOrderLimit"`
}

func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{
		FreeWindow:      24 * time.Hour,
		GuestOrderLimit: 1,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds QuotaPolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy QuotaPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	log = log.Named("policy.config")
	v := viper.New()

	if path := strings.TrimSpace(cfg.PolicyPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("policy")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/dreamline")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DREAMLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultQuotaPolicy()
	v.SetDefault("policy.freeWindow", defaults.FreeWindow.String())
	v.SetDefault("policy.guestOrderLimit", defaults.GuestOrderLimit)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var policy QuotaPolicy
	if err := v.UnmarshalKey("policy", &policy); err != nil {
		return nil, err
	}
	if err := validateQuotaPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var updated QuotaPolicy
		if err := v.UnmarshalKey("policy", &updated); err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := validateQuotaPolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded",
			zap.String("file", e.Name),
			zap.Duration("free_window", updated.FreeWindow),
			zap.Int("guest_order_limit", updated.GuestOrderLimit),
		)
	})
	v.WatchConfig()

	return holder, nil
}

func (h *PolicyHolder) Get() QuotaPolicy {
	return h.current.Load().(QuotaPolicy)
}

func validateQuotaPolicy(p QuotaPolicy) error {
	if p.FreeWindow <= 0 {
		return errors.New("policy.freeWindow must be positive")
	}
	if p.GuestOrderLimit < 1 {
		return errors.New("policy.guestOrderLimit must be at least 1")
	}
	return nil
}
