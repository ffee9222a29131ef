package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BoardLimits are runtime caps that can be changed without a restart.
type BoardLimits struct {
	MaxColumnsPerBoard int `mapstructure:"maxColumnsPerBoard"`
	MaxCardsPerColumn  int `mapstructure:"maxCardsPerColumn"`
	MaxCommentLength   int `mapstructure:"maxCommentLength"`
	MaxPageSize        int `mapstructure:"maxPageSize"`
}

func DefaultBoardLimits() BoardLimits {
	return BoardLimits{
		MaxColumnsPerBoard: 50,
		MaxCardsPerColumn:  500,
		MaxCommentLength:   1000,
		MaxPageSize:        100,
	}
}

type LimitsHolder struct {
	current atomic.Value // holds BoardLimits
}

// NewStaticLimits returns a holder that never reloads.
func NewStaticLimits(limits BoardLimits) *LimitsHolder {
	holder := &LimitsHolder{}
	holder.current.Store(limits)
	return holder
}

func NewLimitsHolder() (*LimitsHolder, error) {
	v := viper.New()

	v.SetConfigName("limits")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/taskboard")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBoardLimits()
	v.SetDefault("limits.maxColumnsPerBoard", defaults.MaxColumnsPerBoard)
	v.SetDefault("limits.maxCardsPerColumn", defaults.MaxCardsPerColumn)
	v.SetDefault("limits.maxCommentLength", defaults.MaxCommentLength)
	v.SetDefault("limits.maxPageSize", defaults.MaxPageSize)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var limits BoardLimits
	if err := v.UnmarshalKey("limits", &limits); err != nil {
		return nil, err
	}
	if err := validateLimits(limits); err != nil {
		return nil, err
	}

	holder := NewStaticLimits(limits)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BoardLimits
		if err := v.UnmarshalKey("limits", &updated); err != nil {
			zap.L().Warn("limits reload failed", zap.Error(err))
			return
		}
		if err := validateLimits(updated); err != nil {
			zap.L().Warn("invalid limits ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("limits reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *LimitsHolder) Get() BoardLimits {
	if h == nil {
		return DefaultBoardLimits()
	}
	return h.current.Load().(BoardLimits)
}

func validateLimits(l BoardLimits) error {
	if l.MaxColumnsPerBoard <= 0 {
		return errors.New("limits.maxColumnsPerBoard must be positive")
	}
	if l.MaxCardsPerColumn <= 0 {
		return errors.New("limits.maxCardsPerColumn must be positive")
	}
	if l.MaxCommentLength <= 0 {
		return errors.New("limits.maxCommentLength must be positive")
	}
	if l.MaxPageSize <= 0 {
		return errors.New("limits.maxPageSize must be positive")
	}
	return nil
}
