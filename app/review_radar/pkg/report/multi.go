package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/metrics"
)

// MultiSink 依次写入多个输出
type MultiSink []Sink

// WriteAll 写入所有输出，单个失败只记录日志。
// 返回成功写入的位置；全部失败时返回错误。
func (m MultiSink) WriteAll(ctx context.Context, t *Table) ([]string, error) {
	var (
		locations []string
		errs      []error
	)
	for _, s := range m {
		loc, err := s.Write(ctx, t)
		metrics.RecordReportWrite(s.Name(), err)
		if err != nil {
			logger.Log.Errorf("报告写入失败 [%s]: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		logger.Log.Infof("报告已写入 [%s]: %s", s.Name(), loc)
		locations = append(locations, loc)
	}
	if len(locations) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return locations, nil
}

// Names 返回所有输出的名称
func (m MultiSink) Names() string {
	names := make([]string, 0, len(m))
	for _, s := range m {
		names = append(names, s.Name())
	}
	return strings.Join(names, ",")
}
