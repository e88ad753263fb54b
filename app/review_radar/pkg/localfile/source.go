// Package localfile 从本地 yaml/json 文件读取评论，用于离线分析和测试
package localfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/playstore"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/review"
)

// Source 本地文件评论来源，文件在创建时一次性读入
type Source struct {
	path    string
	reviews []model.Review
}

// NewSource 读取评论文件，根据扩展名选择 json 或 yaml
func NewSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read review file failed: %w", err)
	}

	var reviews []model.Review
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &reviews)
	default:
		err = yaml.Unmarshal(data, &reviews)
	}
	if err != nil {
		return nil, fmt.Errorf("decode review file %s failed: %w", path, err)
	}

	return &Source{path: path, reviews: reviews}, nil
}

// Ensure Source implements review.Source
var _ review.Source = (*Source)(nil)

// FetchReviewsForDate implements review.Source
// 未填写 app 的评论视为属于任意应用。
func (s *Source) FetchReviewsForDate(ctx context.Context, app string, date time.Time) ([]model.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pkg := playstore.PackageName(app)
	matched := make([]model.Review, 0)
	for _, r := range s.reviews {
		if r.App != "" && r.App != pkg {
			continue
		}
		matched = append(matched, r)
	}
	return review.FilterByDate(matched, date), nil
}
