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

// PaymentPolicy holds payment rules that operators may change without a restart.
type PaymentPolicy struct {
	ExpireMinutes          int    `mapstructure:"expireMinutes"`
	EnforcePeriodWindow    bool   `mapstructure:"enforcePeriodWindow"`
	CallbackLockTTLSeconds int    `mapstructure:"callbackLockTTLSeconds"`
	Timezone               string `mapstructure:"timezone"`
}

func DefaultPaymentPolicy() PaymentPolicy {
	return PaymentPolicy{
		ExpireMinutes:          15,
		EnforcePeriodWindow:    true,
		CallbackLockTTLSeconds: 30,
		Timezone:               "Asia/Ho_Chi_Minh",
	}
}

// Expiry is how long a signed payment URL stays valid at the gateway.
func (p PaymentPolicy) Expiry() time.Duration {
	return time.Duration(p.ExpireMinutes) * time.Minute
}

func (p PaymentPolicy) CallbackLockTTL() time.Duration {
	return time.Duration(p.CallbackLockTTLSeconds) * time.Second
}

// Location resolves the gateway timezone, falling back to a fixed UTC+7 zone
// when tzdata is unavailable.
func (p PaymentPolicy) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(p.Timezone))
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

type PolicyHolder struct {
	current atomic.Value // holds PaymentPolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy PaymentPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	log = log.Named("payment.policy")
	v := viper.New()

	v.SetConfigName("payment-policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/condofee")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CONDOFEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPaymentPolicy()
	v.SetDefault("payment.expireMinutes", defaults.ExpireMinutes)
	v.SetDefault("payment.enforcePeriodWindow", defaults.EnforcePeriodWindow)
	v.SetDefault("payment.callbackLockTTLSeconds", defaults.CallbackLockTTLSeconds)
	v.SetDefault("payment.timezone", defaults.Timezone)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var policy PaymentPolicy
	if err := v.UnmarshalKey("payment", &policy); err != nil {
		return nil, err
	}
	if err := validatePaymentPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PaymentPolicy
		if err := v.UnmarshalKey("payment", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validatePaymentPolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() PaymentPolicy {
	if h == nil {
		return DefaultPaymentPolicy()
	}
	return h.current.Load().(PaymentPolicy)
}

func validatePaymentPolicy(p PaymentPolicy) error {
	if p.ExpireMinutes <= 0 {
		return errors.New("payment.expireMinutes must be positive")
	}
	if p.CallbackLockTTLSeconds <= 0 {
		return errors.New("payment.callbackLockTTLSeconds must be positive")
	}
	if strings.TrimSpace(p.Timezone) == "" {
		return errors.New("payment.timezone cannot be empty")
	}
	return nil
}
