package market

import (
	"errors"
	"math"

	"github.com/kjannette/gold-monitor-backend/internal/models"
)

var ErrEmptySeries = errors.New("cannot aggregate an empty series")

// Aggregate summarises closes and volumes of a series. When the first
// close is zero the percentage change is reported as 0.
func Aggregate(series models.Series) (models.Statistics, error) {
	if len(series) == 0 {
		return models.Statistics{}, ErrEmptySeries
	}

	st := models.Statistics{
		High: math.Inf(-1),
		Low:  math.Inf(1),
	}
	var sum float64
	for _, c := range series {
		st.High = max(st.High, c.Close)
		st.Low = min(st.Low, c.Close)
		st.VolumeTotal += c.Volume
		sum += c.Close
	}
	st.Average = sum / float64(len(series))

	first, last := series[0].Close, series[len(series)-1].Close
	st.ChangeAbsolute = last - first
	if first != 0 {
		st.ChangePercent = st.ChangeAbsolute / first * 100
	}
	return st, nil
}
