package atri

import (
	"math"
	"strings"
	"unicode/utf8"
)

// EstimateMethod 决定如何合并按词数和按字符数估算的结果
type EstimateMethod string

const (
	EstimateAverage EstimateMethod = "average"
	EstimateWords   EstimateMethod = "words"
	EstimateChars   EstimateMethod = "chars"
	EstimateMax     EstimateMethod = "max"
	EstimateMin     EstimateMethod = "min"
)

// EstimateTokens 粗略估算text的token数量, 未知的method按max处理
func EstimateTokens(text string, method EstimateMethod) int {
	byWords := float64(len(strings.Fields(text))) / 0.75
	byChars := float64(utf8.RuneCountInString(text)) / 4.0

	var n float64
	switch method {
	case EstimateAverage:
		n = (byWords + byChars) / 2
	case EstimateWords:
		n = byWords
	case EstimateChars:
		n = byChars
	case EstimateMin:
		n = math.Min(byWords, byChars)
	default:
		n = math.Max(byWords, byChars)
	}

	return int(math.Ceil(n))
}
