package pipeline

import (
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Result is what the rendering boundary receives for one query: the filtered
// rows plus the session's colours restricted to the requested types.
type Result struct {
	Query  domain.Query         `json:"query"`
	Rows   []domain.Measurement `json:"rows"`
	Series []domain.Series      `json:"series"`
	Colors map[string]string    `json:"colors"`
	Empty  bool                 `json:"empty"`
}

// Execute runs q against ds, assigning colours from colors. The caller owns
// colors and must not share it across sessions. An empty selection is not
// an error; Result.Empty is set instead.
func (p *Pipeline) Execute(ds *Dataset, q domain.Query, colors *domain.ColorAllocator) (Result, error) {
	if err := q.Validate(); err != nil {
		p.metrics.Queries.WithLabelValues(string(q.ChartKind), "invalid").Inc()
		return Result{}, err
	}
	q = q.WithDefaults()

	before := colors.RandomCount()
	assigned := colors.AssignAll(q.PollutantTypes)
	if n := colors.RandomCount() - before; n > 0 {
		p.metrics.RandomColors.Add(float64(n))
	}

	rows := domain.FilterForChart(ds.Measurements, q)
	res := Result{
		Query:  q,
		Rows:   rows,
		Series: domain.BuildSeries(rows, q, assigned),
		Colors: assigned,
		Empty:  len(rows) == 0,
	}

	outcome := "ok"
	if res.Empty {
		outcome = "empty"
	}
	p.metrics.Queries.WithLabelValues(string(q.ChartKind), outcome).Inc()
	return res, nil
}
