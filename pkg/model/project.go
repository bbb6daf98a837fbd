// Package model defines the project and manifest records of the municipal
// investment dataset.
package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// FirstYear and LastYear bound the planning period covered by every record.
const (
	FirstYear = 2026
	LastYear  = 2031
	NumYears  = LastYear - FirstYear + 1
)

// Years lists the planning years in order.
var Years = [NumYears]int{2026, 2027, 2028, 2029, 2030, 2031}

// YearAmounts maps each planning year to an amount. Index 0 is FirstYear.
type YearAmounts [NumYears]float64

// Get returns the amount for the given year, or 0 when the year is outside
// the planning period.
func (y YearAmounts) Get(year int) float64 {
	if year < FirstYear || year > LastYear {
		return 0
	}
	return y[year-FirstYear]
}

// Sum returns the total over all years.
func (y YearAmounts) Sum() float64 {
	var s float64
	for _, v := range y {
		s += v
	}
	return s
}

// Peak returns the year with the largest amount. Ties pick the earliest.
func (y YearAmounts) Peak() (year int, amount float64) {
	year = FirstYear
	amount = y[0]
	for i, v := range y {
		if v > amount {
			year, amount = FirstYear+i, v
		}
	}
	return year, amount
}

// UnmarshalJSON decodes a {"2026": n, ...} object. Missing years stay 0; a key
// outside the planning period is an error.
func (y *YearAmounts) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out YearAmounts
	for k, v := range raw {
		year, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return fmt.Errorf("invalid year key %q", k)
		}
		if year < FirstYear || year > LastYear {
			return fmt.Errorf("year %d outside %d-%d", year, FirstYear, LastYear)
		}
		out[year-FirstYear] = v
	}
	*y = out
	return nil
}

// MarshalJSON encodes the amounts as a year-keyed object.
func (y YearAmounts) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, NumYears)
	for i, v := range y {
		m[strconv.Itoa(FirstYear+i)] = v
	}
	return json.Marshal(m)
}

// Key identifies a project across chunks.
type Key struct {
	NIS  string
	Code string
}

func (k Key) String() string {
	return k.NIS + "/" + k.Code
}

// Project is one planned investment action of one municipality.
type Project struct {
	Municipality string `json:"municipality"`
	NISCode      string `json:"nis_code"`

	// Beleidsdoelstelling (policy goal) the action plan belongs to.
	BDCode  string `json:"bd_code"`
	BDShort string `json:"bd_short"`
	BDLong  string `json:"bd_long"`

	// Actieplan (action plan) the action belongs to.
	APCode  string `json:"ap_code"`
	APShort string `json:"ap_short"`
	APLong  string `json:"ap_long"`

	ACCode  string `json:"ac_code"`
	ACShort string `json:"ac_short"`
	ACLong  string `json:"ac_long"`

	TotalAmount     float64     `json:"total_amount"`
	AmountPerCapita float64     `json:"amount_per_capita"`
	YearlyAmounts   YearAmounts `json:"yearly_amounts"`
	YearlyPerCapita YearAmounts `json:"yearly_per_capita"`
	Categories      []string    `json:"categories"`
}

// Key returns the identity of the project.
func (p *Project) Key() Key {
	return Key{NIS: p.NISCode, Code: p.ACCode}
}

// HasCategory reports whether the project is tagged with id.
func (p *Project) HasCategory(id string) bool {
	for _, c := range p.Categories {
		if c == id {
			return true
		}
	}
	return false
}

// Title returns the short description, falling back to the long one.
func (p *Project) Title() string {
	if p.ACShort != "" {
		return p.ACShort
	}
	return p.ACLong
}

// Validate checks that the record carries an identity and sane amounts.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.NISCode) == "" {
		return errors.New("nis_code cannot be empty")
	}
	if strings.TrimSpace(p.ACCode) == "" {
		return errors.New("ac_code cannot be empty")
	}
	if strings.TrimSpace(p.Municipality) == "" {
		return errors.New("municipality cannot be empty")
	}
	if math.IsNaN(p.TotalAmount) || math.IsInf(p.TotalAmount, 0) {
		return errors.New("total_amount is not a finite number")
	}
	for i, c := range p.Categories {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("category %d is empty", i)
		}
	}
	return nil
}
