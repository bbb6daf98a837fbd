// Package geo maps Belgian NIS municipality codes to their province and
// region, and folds pre-2025 codes of merged municipalities onto the new
// municipality.
package geo

import (
	"fmt"
	"strings"
)

// Region NIS codes.
const (
	RegionBelgium  = "1000"
	RegionFlanders = "2000"
	RegionWallonia = "3000"
	RegionBrussels = "4000"
)

// Province NIS codes. Brussels has no province and uses its region code
// 21000 in the published data.
const (
	ProvinceAntwerp        = "10000"
	ProvinceFlemishBrabant = "20001"
	ProvinceWalloonBrabant = "20002"
	ProvinceWestFlanders   = "30000"
	ProvinceEastFlanders   = "40000"
	ProvinceHainaut        = "50000"
	ProvinceLiege          = "60000"
	ProvinceLimburg        = "70000"
	ProvinceLuxembourg     = "80000"
	ProvinceNamur          = "90000"
	ProvinceBrussels       = "21000"
)

// Province is one entry of the province table.
type Province struct {
	Code   string
	Name   string
	Region string
}

// Provinces lists every province in display order.
var Provinces = []Province{
	{ProvinceAntwerp, "Antwerpen", RegionFlanders},
	{ProvinceEastFlanders, "Oost-Vlaanderen", RegionFlanders},
	{ProvinceFlemishBrabant, "Vlaams-Brabant", RegionFlanders},
	{ProvinceLimburg, "Limburg", RegionFlanders},
	{ProvinceWestFlanders, "West-Vlaanderen", RegionFlanders},
	{ProvinceWalloonBrabant, "Waals-Brabant", RegionWallonia},
	{ProvinceHainaut, "Henegouwen", RegionWallonia},
	{ProvinceLiege, "Luik", RegionWallonia},
	{ProvinceLuxembourg, "Luxemburg", RegionWallonia},
	{ProvinceNamur, "Namen", RegionWallonia},
	{ProvinceBrussels, "Brussel", RegionBrussels},
}

var provinceByCode = func() map[string]Province {
	m := make(map[string]Province, len(Provinces))
	for _, p := range Provinces {
		m[p.Code] = p
	}
	return m
}()

// mergers maps pre-2025 NIS codes to the municipality they merged into on
// 1 January 2025.
var mergers = map[string]string{
	"11002": "11002", "11007": "11002", // Antwerpen + Borsbeek
	"23023": "23106", "23024": "23106", "23032": "23106", // Pajottegem
	"37012": "37021", "37018": "37021", // Wingene + Ruiselede
	"37007": "37022", "37015": "37022", // Tielt + Meulebeke
	"44012": "44086", "44048": "44086", // Nazareth-De Pinte
	"44034": "44087", "44073": "44087", // Lochristi + Wachtebeke
	"46014": "46029", "44045": "46029", // Lokeren + Moerbeke
	"44040": "44088", "44043": "44088", // Merelbeke-Melle
	"46003": "46030", "46013": "46030", "11056": "46030", // Beveren-Kruibeke-Zwijndrecht
	"73006": "73110", "73032": "73110", // Bilzen-Hoeselt
	"73009": "73111", "73083": "73111", // Tongeren-Borgloon
	"71069": "71071", "71057": "71071", // Tessenderlo-Ham
	"71022": "71072", "73040": "71072", // Hasselt + Kortessem
	"82003": "82039", "82005": "82039", // Bastogne + Bertogne
}

// Pad left-pads a numeric code with zeros to five digits.
func Pad(code string) string {
	code = strings.TrimSpace(code)
	if len(code) >= 5 {
		return code
	}
	return strings.Repeat("0", 5-len(code)) + code
}

// NormalizeNIS returns the current NIS code for code, following 2025
// mergers. Unknown codes are returned padded but otherwise unchanged.
func NormalizeNIS(code string) string {
	code = Pad(code)
	if merged, ok := mergers[code]; ok {
		return merged
	}
	return code
}

// Merged reports whether code belonged to a municipality that merged in 2025.
func Merged(code string) bool {
	code = Pad(code)
	merged, ok := mergers[code]
	return ok && merged != code
}

// ProvinceFor returns the province code of a municipality NIS code.
// Unrecognised codes fall back to Antwerp.
func ProvinceFor(nis string) string {
	nis = Pad(nis)
	switch {
	case strings.HasPrefix(nis, "21"):
		return ProvinceBrussels
	case strings.HasPrefix(nis, "23"), strings.HasPrefix(nis, "24"):
		return ProvinceFlemishBrabant
	case strings.HasPrefix(nis, "25"):
		return ProvinceWalloonBrabant
	}
	switch nis[0] {
	case '1':
		return ProvinceAntwerp
	case '3':
		return ProvinceWestFlanders
	case '4':
		return ProvinceEastFlanders
	case '5':
		return ProvinceHainaut
	case '6':
		return ProvinceLiege
	case '7':
		return ProvinceLimburg
	case '8':
		return ProvinceLuxembourg
	case '9':
		return ProvinceNamur
	}
	return ProvinceAntwerp
}

// RegionFor returns the region code of a municipality NIS code.
func RegionFor(nis string) string {
	if p, ok := provinceByCode[ProvinceFor(nis)]; ok {
		return p.Region
	}
	return RegionBelgium
}

// ProvinceName returns the Dutch name of a province code.
func ProvinceName(code string) string {
	if p, ok := provinceByCode[code]; ok {
		return p.Name
	}
	return code
}

// LookupProvince resolves a province given by code or (case-insensitive)
// name.
func LookupProvince(s string) (Province, error) {
	s = strings.TrimSpace(s)
	if p, ok := provinceByCode[s]; ok {
		return p, nil
	}
	for _, p := range Provinces {
		if strings.EqualFold(p.Name, s) {
			return p, nil
		}
	}
	return Province{}, fmt.Errorf("unknown province %q", s)
}
