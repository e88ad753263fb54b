// Package storeinfo 读取应用商店页面信息
package storeinfo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/playstore"
)

const detailsURL = "https://play.google.com/store/apps/details?id=%s&hl=en"

// PageURL 返回应用详情页地址，已是 http 链接时原样返回
func PageURL(app string) string {
	app = strings.TrimSpace(app)
	if strings.HasPrefix(app, "http://") || strings.HasPrefix(app, "https://") {
		return app
	}
	return fmt.Sprintf(detailsURL, playstore.PackageName(app))
}

// LookupTitle 抓取详情页并返回应用名称，ctx 取消时立即返回
func LookupTitle(ctx context.Context, app string, timeout time.Duration) (string, error) {
	pageURL, err := url.Parse(PageURL(app))
	if err != nil {
		return "", fmt.Errorf("parse page url failed: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("store page error (status %d)", res.StatusCode)
	}

	article, err := readability.FromReader(res.Body, pageURL)
	if err != nil {
		return "", err
	}
	return cleanTitle(article.Title), nil
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, suffix := range []string{" - Apps on Google Play", " – Apps on Google Play"} {
		title = strings.TrimSuffix(title, suffix)
	}
	return strings.TrimSpace(title)
}
