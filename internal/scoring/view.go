package scoring

import (
	"strings"

	"github.com/opensource-finance/heron/internal/decision"
	"github.com/opensource-finance/heron/internal/domain"
)

// BandView is the display form of one band.
type BandView struct {
	Range     string `json:"range"`
	Points    int    `json:"points"`
	Rationale string `json:"rationale"`
}

// TableView is the display form of one table.
type TableView struct {
	Factor domain.Factor `json:"factor"`
	Bands  []BandView    `json:"bands"`
}

// TablesView is the display form of a table set, as served on /risk/tables.
type TablesView struct {
	Version    string               `json:"version"`
	Tables     []TableView          `json:"tables"`
	Thresholds []decision.Threshold `json:"thresholds"`
}

// Describe renders the table set in evaluation order.
func (s *TableSet) Describe() TablesView {
	view := TablesView{
		Version:    s.Version,
		Thresholds: decision.Thresholds(),
	}

	for _, t := range s.Numeric() {
		tv := TableView{Factor: t.Factor}
		for _, b := range t.Bands {
			tv.Bands = append(tv.Bands, BandView{
				Range:     b.Range(),
				Points:    b.Points,
				Rationale: b.Rationale,
			})
		}
		view.Tables = append(view.Tables, tv)
	}

	industry := TableView{Factor: domain.FactorIndustry}
	for _, b := range s.Industry.Bands {
		names := make([]string, 0, len(b.Industries))
		for _, ind := range b.Industries {
			names = append(names, string(ind))
		}
		industry.Bands = append(industry.Bands, BandView{
			Range:     strings.Join(names, ", "),
			Points:    b.Points,
			Rationale: b.Rationale,
		})
	}
	view.Tables = append(view.Tables, industry)

	return view
}
