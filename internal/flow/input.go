package flow

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+(?:[.,]\d*)?|[.,]\d+)`)

// ParseNumber reads the number at the start of text, accepting a comma as decimal
// separator. Trailing units such as "80kg" are ignored.
func ParseNumber(text string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(text))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// numberRule describes what a numeric answer must look like.
type numberRule struct {
	integer  bool   // truncate to a whole number
	positive bool   // require > 0 instead of >= 0
	invalid  string // reply on rejection
}

var (
	positiveNumber  = numberRule{positive: true, invalid: msgInvalidNumber}
	positiveInteger = numberRule{integer: true, positive: true, invalid: msgInvalidNumber}
	wholeAmount     = numberRule{integer: true, invalid: msgInvalidNumber}
	targetWeight    = numberRule{positive: true, invalid: msgInvalidTargetWeight}
)

func (r numberRule) parse(text string) (float64, bool) {
	v, ok := ParseNumber(text)
	if !ok {
		return 0, false
	}
	if r.integer {
		v = math.Trunc(v)
	}
	if v < 0 || (r.positive && v == 0) {
		return 0, false
	}
	return v, true
}

// askNumber parses an answer. On rejection it replies with the rule's error and
// leaves the session untouched; ok is false in that case.
func (e *Engine) askNumber(ctx context.Context, userID, text string, r numberRule) (v float64, ok bool, err error) {
	v, ok = r.parse(text)
	if !ok {
		return 0, false, e.msg.SendText(ctx, userID, r.invalid)
	}
	return v, true, nil
}
