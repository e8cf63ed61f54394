package analytics

import (
	"strconv"
	"time"

	"github.com/findosh/quantdesk/internal/models"
)

// timeline is a value series keyed by alignment key. For daily and coarser
// intervals the key is the UTC calendar day, for intraday intervals the exact
// bar instant.
type timeline struct {
	interval string
	keys     []string
	dates    []time.Time
	values   []float64
}

func alignKey(t time.Time, interval string) string {
	if models.IsIntraday(interval) {
		return strconv.FormatInt(t.Unix(), 10)
	}
	return t.UTC().Format(time.DateOnly)
}

func alignDate(t time.Time, interval string) time.Time {
	if models.IsIntraday(interval) {
		return t.UTC()
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (tl *timeline) add(key string, date time.Time, value float64) {
	if n := len(tl.keys); n > 0 && tl.keys[n-1] == key {
		tl.values[n-1] = value
		return
	}
	tl.keys = append(tl.keys, key)
	tl.dates = append(tl.dates, date)
	tl.values = append(tl.values, value)
}

func singleTimeline(s *models.PriceSeries, interval string) *timeline {
	tl := &timeline{interval: interval}
	for _, b := range s.Bars {
		tl.add(alignKey(b.Date, interval), alignDate(b.Date, interval), b.Close)
	}
	return tl
}

// alignTimelines values a weighted basket of series on the keys present in
// every series. Keys missing from any one series are dropped, not filled.
func alignTimelines(series []*models.PriceSeries, weights []float64, interval string) (*timeline, error) {
	closes := make([]map[string]float64, len(series))
	for i, s := range series {
		m := make(map[string]float64, s.Len())
		for _, b := range s.Bars {
			m[alignKey(b.Date, interval)] = b.Close
		}
		closes[i] = m
	}

	tl := &timeline{interval: interval}
	for _, b := range series[0].Bars {
		key := alignKey(b.Date, interval)

		total := 0.0
		common := true
		for i, m := range closes {
			c, ok := m[key]
			if !ok {
				common = false
				break
			}
			total += weights[i] * c
		}
		if common {
			tl.add(key, alignDate(b.Date, interval), total)
		}
	}

	if len(tl.keys) == 0 {
		return nil, errNoOverlap
	}
	return tl, nil
}
