package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/yogastudio/internal/model"
)

// maxBodyBytes はリクエストボディの上限サイズ。説明文2500文字に十分な余裕を持たせる。
const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーメッセージにはJSONのフィールド名を使う
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("sessiondate", func(fl validator.FieldLevel) bool {
		_, err := parseSessionDate(fl.Field().String())
		return err == nil
	})
	return v
}

// decodeAndValidate はJSONボディをdstに読み込み、validateタグで検証する。
// 失敗した場合は返すべきAPIErrorを返す。
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) *model.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewInvalidRequestError()
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return model.NewValidationError(verrs[0].Field())
		}
		return model.NewInvalidRequestError()
	}
	return nil
}

// sessionDateLayouts はセッション日付として受け付ける書式。
var sessionDateLayouts = []string{
	time.DateOnly,
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// parseSessionDate はセッション日付を解釈し、書かれた暦日のUTC 0時を返す。
// 時刻やオフセットは捨てる。"2024-12-31T23:00:00-05:00" は 2024-12-31 になる。
func parseSessionDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range sessionDateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
