package review

import (
	"context"
	"time"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
)

// Source 定义评论来源接口
type Source interface {
	// FetchReviewsForDate 返回指定应用在某一天的评论，可以为空。
	// 实现必须只返回 At 恰好等于该日期的评论。
	FetchReviewsForDate(ctx context.Context, app string, date time.Time) ([]model.Review, error)
}

// FilterByDate 保留 At 等于指定日期的评论
func FilterByDate(reviews []model.Review, date time.Time) []model.Review {
	day := date.Format(time.DateOnly)
	out := make([]model.Review, 0, len(reviews))
	for _, r := range reviews {
		if r.At == day {
			out = append(out, r)
		}
	}
	return out
}
