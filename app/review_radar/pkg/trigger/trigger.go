// Package trigger 分析请求的入口约定
package trigger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request 一次分析请求
type Request struct {
	AnalysisID string `json:"analysis_id" validate:"max=128"`
	AppURL     string `json:"app_url" validate:"required,max=512"`
	TargetDate string `json:"target_date" validate:"required,datetime=2006-01-02"`
}

// Normalize 去掉空白并补全默认值：ID 为空时生成 uuid，日期为空时取 now 的当天
func (r Request) Normalize(now time.Time) Request {
	r.AnalysisID = strings.TrimSpace(r.AnalysisID)
	r.AppURL = strings.TrimSpace(r.AppURL)
	r.TargetDate = strings.TrimSpace(r.TargetDate)
	if r.AnalysisID == "" {
		r.AnalysisID = uuid.NewString()
	}
	if r.TargetDate == "" {
		r.TargetDate = now.Format(time.DateOnly)
	}
	return r
}

// Validate 校验请求
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// InitialState 构造初始状态，所有集合为空，状态为 started
func (r Request) InitialState() model.AnalysisState {
	return model.NewAnalysisState(r.AnalysisID, r.AppURL, r.TargetDate)
}
