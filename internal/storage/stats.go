package storage

import (
	"math"
	"sort"
)

type running struct {
	count    int
	sum      float64
	sumSq    float64
	min, max float64
}

func (r *running) add(v float64) {
	if r.count == 0 || v < r.min {
		r.min = v
	}
	if r.count == 0 || v > r.max {
		r.max = v
	}
	r.count++
	r.sum += v
	r.sumSq += v * v
}

func (r *running) mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sum / float64(r.count)
}

// stdDevPop returns the population standard deviation.
func (r *running) stdDevPop() float64 {
	if r.count == 0 {
		return 0
	}
	m := r.mean()
	variance := r.sumSq/float64(r.count) - m*m
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// aggregator accumulates price statistics overall and per company.
type aggregator struct {
	all       running
	byCompany map[string]*running
}

func newAggregator() *aggregator {
	return &aggregator{byCompany: make(map[string]*running)}
}

func (a *aggregator) add(company string, price float64) {
	a.all.add(price)

	r, ok := a.byCompany[company]
	if !ok {
		r = &running{}
		a.byCompany[company] = r
	}
	r.add(price)
}

// companies returns per-company stats, most predicted first.
func (a *aggregator) companies() []CompanyStats {
	out := make([]CompanyStats, 0, len(a.byCompany))
	for company, r := range a.byCompany {
		out = append(out, CompanyStats{
			Company:  company,
			Count:    r.count,
			AvgPrice: r.mean(),
			MinPrice: r.min,
			MaxPrice: r.max,
		})
	}
	sortCompanyStats(out)
	return out
}

func (a *aggregator) overall() PriceStats {
	return PriceStats{
		TotalPredictions: a.all.count,
		AvgPrice:         a.all.mean(),
		MinPrice:         a.all.min,
		MaxPrice:         a.all.max,
		StdDevPrice:      a.all.stdDevPop(),
	}
}

// sortCompanyStats orders by count descending, then by name for stable output.
func sortCompanyStats(stats []CompanyStats) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Company < stats[j].Company
	})
}
