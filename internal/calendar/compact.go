package calendar

import "strconv"

// CompactAmount shortens an amount for a calendar cell: 12500 -> "1万",
// 2500 -> "2千", 500 -> "500". Digits are truncated, never rounded, so the
// result must not be used for totals.
func CompactAmount(v int64) string {
	switch {
	case v >= 10000:
		return strconv.FormatInt(v/10000, 10) + "万"
	case v >= 1000:
		return strconv.FormatInt(v/1000, 10) + "千"
	default:
		return strconv.FormatInt(v, 10)
	}
}
