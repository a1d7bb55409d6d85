package conditional

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	types "haptix/internal/domain/workflow/model"
)

// Evaluate 比较参数值与 compareValue
//
// 数值操作符按 parseFloat 语义解析两侧（取最长数字前缀，无法解析为 NaN，NaN 比较恒为 false）；
// === / !== 比较两侧的字符串形式，缺失的参数视为空串；未知操作符返回 false
func Evaluate(value any, op types.Operator, compareValue string) bool {
	switch op {
	case types.OperatorEqual:
		return stringify(value) == compareValue
	case types.OperatorNotEqual:
		return stringify(value) != compareValue
	}

	if !op.IsNumeric() {
		return false
	}

	left := ParseFloat(value)
	right := ParseFloat(compareValue)
	if math.IsNaN(left) || math.IsNaN(right) {
		return false
	}

	switch op {
	case types.OperatorGT:
		return left > right
	case types.OperatorLT:
		return left < right
	case types.OperatorGTE:
		return left >= right
	case types.OperatorLTE:
		return left <= right
	default:
		return false
	}
}

var numericPrefix = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

// ParseFloat 将任意值解析为浮点数，不可解析时返回 NaN
func ParseFloat(v any) float64 {
	switch val := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint64:
		return float64(val)
	case string:
		return parseFloatString(val)
	default:
		return parseFloatString(fmt.Sprint(val))
	}
}

func parseFloatString(s string) float64 {
	m := numericPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return math.NaN()
	}
	switch m {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
