package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig carries the bookkeeping settings that operators change at runtime.
type BillingConfig struct {
	// ActiveFiscalYear is the fiscal year used by rollover generation.
	// Zero means the fiscal year containing "now".
	ActiveFiscalYear int    `mapstructure:"activeFiscalYear"`
	DefaultActor     string `mapstructure:"defaultActor"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		ActiveFiscalYear: 0,
		DefaultActor:     "system",
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed config; used by tests and one-shot commands.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/bukukas")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BUKUKAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.activeFiscalYear", defaults.ActiveFiscalYear)
	v.SetDefault("billing.defaultActor", defaults.DefaultActor)
	if err := v.BindEnv("billing.activeFiscalYear", "ACTIVE_FISCAL_YEAR", "BUKUKAS_BILLING_ACTIVEFISCALYEAR"); err != nil {
		return nil, err
	}

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Warn("billing config reload failed", zap.Error(err))
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Warn("invalid billing config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("billing config reloaded", zap.String("file", e.Name), zap.Int("active_fiscal_year", updated.ActiveFiscalYear))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.ActiveFiscalYear != 0 && (cfg.ActiveFiscalYear < 2000 || cfg.ActiveFiscalYear > 2100) {
		return errors.New("billing.activeFiscalYear must be between 2000 and 2100")
	}
	if strings.TrimSpace(cfg.DefaultActor) == "" {
		return errors.New("billing.defaultActor cannot be empty")
	}
	return nil
}
