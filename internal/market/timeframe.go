package market

const DefaultTimeframe = "24h"

var timeframeHours = map[string]int{
	"1h":  1,
	"6h":  6,
	"24h": 24,
	"7d":  24 * 7,
	"30d": 24 * 30,
}

// ParseTimeframe maps a window label to hours. Unknown labels get the
// 24h window.
func ParseTimeframe(label string) int {
	if h, ok := timeframeHours[label]; ok {
		return h
	}
	return timeframeHours[DefaultTimeframe]
}
