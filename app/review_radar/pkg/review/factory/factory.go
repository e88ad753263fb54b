package factory

import (
	"fmt"
	"time"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/config"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/localfile"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/playstore"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/review"
)

// NewSource 根据配置创建评论来源
func NewSource(cfg *config.Config) (review.Source, error) {
	provider := cfg.ReviewSource.Provider
	if provider == "" {
		provider = "playstore"
	}

	switch provider {
	case "playstore":
		ps := cfg.ReviewSource.PlayStore
		return playstore.NewClient(playstore.Options{
			Lang:     ps.Lang,
			Country:  ps.Country,
			Count:    ps.Count,
			Timeout:  time.Duration(ps.Timeout) * time.Second,
			CacheTTL: time.Duration(ps.CacheTTL) * time.Second,
			CacheLen: ps.CacheSize,
		}), nil

	case "file":
		path := cfg.ReviewSource.File.Path
		if path == "" {
			return nil, fmt.Errorf("review file path is missing")
		}
		return localfile.NewSource(path)

	default:
		return nil, fmt.Errorf("unknown review source provider: %s", provider)
	}
}
