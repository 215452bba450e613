package model

import "strings"

// districtSlugs maps Almaty district names to the slugs used in search URLs.
var districtSlugs = map[string]string{
	"Алмалинский":   "almalinskij",
	"Ауэзовский":    "aujezovskij",
	"Бостандыкский": "bostandykskij",
	"Жетысуский":    "zhetysuskij",
	"Медеуский":     "medeuskij",
	"Наурызбайский": "nauryzbajskiy",
	"Турксибский":   "turksibskij",
	"Алатауский":    "alatauskij",
}

// DistrictSlug resolves a district name to its slug. Unknown names are
// lower-cased with spaces removed so already-slugged values pass through.
func DistrictSlug(name string) string {
	name = strings.TrimSpace(name)
	if slug, ok := districtSlugs[name]; ok {
		return slug
	}
	return strings.ReplaceAll(strings.ToLower(name), " ", "")
}
