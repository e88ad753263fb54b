package playstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/metrics"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/review"
)

const (
	defaultBaseURL = "https://play.google.com"
	batchPath      = "/_/PlayStoreUi/data/batchexecute"
	reviewsRPC     = "UsvDTd"

	sortNewest = 2
)

// Options 客户端参数
type Options struct {
	BaseURL  string
	Lang     string
	Country  string
	Count    int
	Timeout  time.Duration
	CacheTTL time.Duration
	CacheLen int
	Location *time.Location // 评论时间戳换算成日期时使用的时区，默认本地时区
}

// Client Google Play 评论客户端
type Client struct {
	opts   Options
	client *http.Client
	cache  *expirable.LRU[string, []model.Review]
}

// NewClient 创建一个新的 Google Play 客户端
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Lang == "" {
		opts.Lang = "en"
	}
	if opts.Country == "" {
		opts.Country = "in"
	}
	if opts.Count <= 0 {
		opts.Count = 200
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.CacheLen <= 0 {
		opts.CacheLen = 64
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	return &Client{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		cache:  expirable.NewLRU[string, []model.Review](opts.CacheLen, nil, opts.CacheTTL),
	}
}

// Ensure Client implements review.Source
var _ review.Source = (*Client)(nil)

// FetchReviewsForDate implements review.Source
//
// 每次都拉取最新的 Count 条评论再按日期过滤，同一个应用的批次在缓存有效期内复用，
// 因此一次 31 天的采集只会真正请求一次。
func (c *Client) FetchReviewsForDate(ctx context.Context, app string, date time.Time) ([]model.Review, error) {
	pkg := PackageName(app)
	if pkg == "" {
		return nil, fmt.Errorf("empty app identifier")
	}

	batch, err := c.newest(ctx, pkg)
	if err != nil {
		return nil, err
	}
	return review.FilterByDate(batch, date), nil
}

func (c *Client) newest(ctx context.Context, pkg string) ([]model.Review, error) {
	key := fmt.Sprintf("%s|%s|%s|%d", pkg, c.opts.Lang, c.opts.Country, c.opts.Count)
	if batch, ok := c.cache.Get(key); ok {
		return batch, nil
	}

	batch, err := c.fetch(ctx, pkg)
	if err != nil {
		return nil, err
	}
	logger.Log.Debugf("Google Play 返回 %d 条评论 [%s]", len(batch), pkg)
	metrics.ReviewsFetched.Add(float64(len(batch)))
	c.cache.Add(key, batch)
	return batch, nil
}

func (c *Client) fetch(ctx context.Context, pkg string) ([]model.Review, error) {
	endpoint := fmt.Sprintf("%s%s?hl=%s&gl=%s", c.opts.BaseURL, batchPath,
		url.QueryEscape(c.opts.Lang), url.QueryEscape(c.opts.Country))

	form := url.Values{}
	form.Set("f.req", buildPayload(pkg, c.opts.Count))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("play store error (status %d): %s", res.StatusCode, truncate(string(body), 200))
	}

	return parseReviews(body, pkg, c.opts.Location)
}

// PackageName 从应用链接中取出包名，例如
// https://play.google.com/store/apps/details?id=in.swiggy.android&hl=en -> in.swiggy.android
func PackageName(app string) string {
	app = strings.TrimSpace(app)
	if _, after, ok := strings.Cut(app, "id="); ok {
		app = after
	}
	if before, _, ok := strings.Cut(app, "&"); ok {
		app = before
	}
	return app
}

func buildPayload(pkg string, count int) string {
	inner := fmt.Sprintf(`[null,null,[2,%d,[%d,null,null],null,[]],[%q,7]]`, sortNewest, count, pkg)
	quoted, _ := json.Marshal(inner)
	return fmt.Sprintf(`[[[%q,%s,null,"generic"]]]`, reviewsRPC, quoted)
}

// parseReviews 解析 batchexecute 的响应。
// 响应以 )]}' 开头，外层数组的 [0][2] 是一段 JSON 字符串，其 [0] 为评论列表。
func parseReviews(body []byte, pkg string, loc *time.Location) ([]model.Review, error) {
	text := strings.TrimSpace(string(body))
	text = strings.TrimSpace(strings.TrimPrefix(text, ")]}'"))

	var envelope []any
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal response failed: %w", err)
	}

	payload, ok := at(envelope, 0, 2).(string)
	if !ok {
		// 没有评论的应用会返回空载荷
		if at(envelope, 0) != nil {
			return []model.Review{}, nil
		}
		return nil, fmt.Errorf("unexpected response shape")
	}

	var inner []any
	if err := json.Unmarshal([]byte(payload), &inner); err != nil {
		return nil, fmt.Errorf("unmarshal review payload failed: %w", err)
	}

	items, _ := at(inner, 0).([]any)
	reviews := make([]model.Review, 0, len(items))
	for _, item := range items {
		ts, ok := at(item, 5, 0).(float64)
		if !ok {
			continue
		}
		r := model.Review{
			App:     pkg,
			User:    str(at(item, 1, 0)),
			Rating:  int(num(at(item, 2))),
			Content: str(at(item, 4)),
			At:      time.Unix(int64(ts), 0).In(loc).Format(time.DateOnly),
			Reply:   str(at(item, 7, 1)),
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

// at 按下标逐层取值，越界或类型不符时返回 nil
func at(v any, path ...int) any {
	for _, i := range path {
		arr, ok := v.([]any)
		if !ok || i < 0 || i >= len(arr) {
			return nil
		}
		v = arr[i]
	}
	return v
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
