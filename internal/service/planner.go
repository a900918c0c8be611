package service

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"floodguard-be/pkg/retrieval"
)

// locations maps lower-case place names found in utterances to the
// dataset's province spelling.
var locations = map[string]string{
	"bulacan": "BULACAN", "cebu": "CEBU", "isabela": "ISABELA",
	"pangasinan": "PANGASINAN", "pampanga": "PAMPANGA", "albay": "ALBAY",
	"leyte": "LEYTE", "tarlac": "TARLAC", "camarines sur": "CAMARINES SUR",
	"ilocos norte": "ILOCOS NORTE", "negros occidental": "NEGROS OCCIDENTAL",
	"cavite": "CAVITE", "batangas": "BATANGAS", "rizal": "RIZAL",
	"iloilo": "ILOILO", "cagayan": "CAGAYAN", "la union": "LA UNION",
	"nueva ecija": "NUEVA ECIJA", "laguna": "LAGUNA", "ilocos sur": "ILOCOS SUR",
	"quezon": "QUEZON", "sorsogon": "SORSOGON", "negros oriental": "NEGROS ORIENTAL",
	"bukidnon": "BUKIDNON", "abra": "ABRA", "bataan": "BATAAN",
	"camarines norte": "CAMARINES NORTE", "palawan": "PALAWAN",
	"oriental mindoro": "ORIENTAL MINDORO", "occidental mindoro": "OCCIDENTAL MINDORO",

	"manila": "CITY OF MANILA", "quezon city": "QUEZON CITY",
	"caloocan": "CALOOCAN CITY", "pasig": "PASIG CITY", "taguig": "TAGUIG CITY",
	"malabon": "MALABON CITY", "navotas": "NAVOTAS CITY", "valenzuela": "VALENZUELA CITY",
	"marikina": "MARIKINA CITY", "makati": "MAKATI CITY", "parañaque": "PARAÑAQUE CITY",
	"las piñas": "LAS PIÑAS CITY", "pasay": "PASAY CITY", "pateros": "PATEROS",
	"muntinlupa": "MUNTINLUPA CITY", "san juan": "SAN JUAN CITY", "mandaluyong": "MANDALUYONG CITY",

	"davao del sur": "DAVAO DEL SUR", "davao del norte": "DAVAO DEL NORTE",
	"davao oriental": "DAVAO ORIENTAL", "davao occidental": "DAVAO OCCIDENTAL",
	"davao de oro": "DAVAO DE ORO",

	"misamis oriental": "MISAMIS ORIENTAL", "misamis occidental": "MISAMIS OCCIDENTAL",
	"agusan del norte": "AGUSAN DEL NORTE", "agusan del sur": "AGUSAN DEL SUR",
	"south cotabato": "SOUTH COTABATO", "sultan kudarat": "SULTAN KUDARAT",
	"cotabato": "COTABATO (NORTH COTABATO)", "lanao del norte": "LANAO DEL NORTE",
	"lanao del sur": "LANAO DEL SUR", "zamboanga del sur": "ZAMBOANGA DEL SUR",
	"zamboanga del norte": "ZAMBOANGA DEL NORTE", "zamboanga sibugay": "ZAMBOANGA SIBUGAY",
	"surigao del norte": "SURIGAO DEL NORTE", "surigao del sur": "SURIGAO DEL SUR",
	"maguindanao": "MAGUINDANAO DEL SUR", "basilan": "BASILAN",
	"dinagat islands": "DINAGAT ISLANDS", "camiguin": "CAMIGUIN",

	"bohol": "BOHOL", "biliran": "BILIRAN", "samar": "SAMAR (WESTERN SAMAR)",
	"southern leyte": "SOUTHERN LEYTE", "northern samar": "NORTHERN SAMAR",
	"eastern samar": "EASTERN SAMAR", "aklan": "AKLAN", "antique": "ANTIQUE",
	"capiz": "CAPIZ", "guimaras": "GUIMARAS", "romblon": "ROMBLON",
	"masbate": "MASBATE", "siquijor": "SIQUIJOR",

	"nueva vizcaya": "NUEVA VIZCAYA", "benguet": "BENGUET", "kalinga": "KALINGA",
	"mountain province": "MOUNTAIN PROVINCE", "apayao": "APAYAO", "ifugao": "IFUGAO",
	"aurora": "AURORA", "zambales": "ZAMBALES", "marinduque": "MARINDUQUE",
	"catanduanes": "CATANDUANES", "batanes": "BATANES", "quirino": "QUIRINO",
	"sarangani": "SARANGANI", "sulu": "SULU",
}

// locationKeys is sorted longest first so "quezon city" wins over "quezon".
var locationKeys = func() []string {
	keys := make([]string, 0, len(locations))
	for k := range locations {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

var (
	dataKeywords = []string{
		"show", "find", "projects", "contractor", "budget", "total",
		"how many", "which", "what", "where", "about", "in", "at", "for",
		"region", "city", "metro",
	}
	followUpIndicators = []string{
		"more", "also", "what about", "how about", "tell me about",
		"largest", "smallest", "top",
	}
	contractorKeywords = []struct{ word, name string }{
		{"azarraga", "AZARRAGA"},
		{"ged", "GED"},
	}
	plannerYears = []int{2024, 2025, 2023, 2022}

	budgetPattern = regexp.MustCompile(`(\d+)\s*(?:million|m)\b`)
	tokenPattern  = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// QueryPlan is what a chat utterance asks the project search for.
type QueryPlan struct {
	NeedsData bool
	FollowUp  bool
	Filters   retrieval.SearchFilters
	Location  string
}

// Empty reports whether no filter was extracted.
func (p QueryPlan) Empty() bool {
	f := p.Filters
	return f.Province == "" && f.Municipality == "" && len(f.InfraYear) == 0 &&
		f.Contractor == "" && f.MinContractCost == nil
}

// PlanQuery extracts search filters from a free-text utterance.
func PlanQuery(message string) QueryPlan {
	lower := strings.ToLower(message)
	words := wordSet(lower)

	plan := QueryPlan{
		NeedsData: mentionsAny(lower, words, dataKeywords),
		FollowUp:  mentionsAny(lower, words, followUpIndicators),
	}

	for _, key := range locationKeys {
		if containsPhrase(lower, words, key) {
			place := locations[key]
			plan.Location = place
			plan.NeedsData = true
			plan.Filters.Province = place
			if strings.Contains(place, "CITY") || place == "QUEZON" || place == "PASIG" || place == "MANILA" {
				plan.Filters.Municipality = place
			}
			break
		}
	}

	for _, year := range plannerYears {
		if strings.Contains(message, strconv.Itoa(year)) {
			plan.Filters.InfraYear = []int{year}
			break
		}
	}

	for _, c := range contractorKeywords {
		if _, ok := words[c.word]; ok {
			plan.Filters.Contractor = c.name
			break
		}
	}

	if m := budgetPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil {
			min := n * 1_000_000
			plan.Filters.MinContractCost = &min
		}
	}
	return plan
}

func wordSet(lower string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range tokenPattern.FindAllString(lower, -1) {
		set[w] = struct{}{}
	}
	return set
}

// containsPhrase matches single words on token boundaries and multi-word
// phrases as substrings.
func containsPhrase(lower string, words map[string]struct{}, phrase string) bool {
	if strings.Contains(phrase, " ") {
		return strings.Contains(" "+strings.Join(tokenPattern.FindAllString(lower, -1), " ")+" ", " "+phrase+" ")
	}
	_, ok := words[phrase]
	return ok
}

func mentionsAny(lower string, words map[string]struct{}, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(lower, words, p) {
			return true
		}
	}
	return false
}
