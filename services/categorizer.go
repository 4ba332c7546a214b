package services

import "strings"

// Category label with the color hint the dashboard renders it with.
type Category struct {
	Name      string `json:"name"`
	ColorHint string `json:"color_hint"`
}

var (
	CategoryIncome         = Category{"Income", "#10b981"}
	CategoryFoodDining     = Category{"Food & Dining", "#f97316"}
	CategoryEntertainment  = Category{"Entertainment", "#3b82f6"}
	CategoryTransportation = Category{"Transportation", "#eab308"}
	CategoryShopping       = Category{"Shopping", "#8b5cf6"}
	CategoryUtilities      = Category{"Utilities", "#06b6d4"}
	CategoryHealthcare     = Category{"Healthcare", "#14b8a6"}
	CategoryEnergy         = Category{"Energy", "#f59e0b"}
	CategoryInsurance      = Category{"Insurance", "#64748b"}
	CategoryOther          = Category{"Other", "#6b7280"}
)

type categoryRule struct {
	keyword  string
	category Category
}

// Ordered rule table, first match wins. More specific keywords must come
// before shorter ones that would shadow them ("uber eats" before "uber").
// This is the single source of truth for categorization; do not add
// per-caller mappings elsewhere.
var categoryRules = []categoryRule{
	// INCOME
	{"salary", CategoryIncome}, {"payroll", CategoryIncome}, {"wages", CategoryIncome},
	{"dividend", CategoryIncome}, {"interest paid", CategoryIncome}, {"refund", CategoryIncome},

	// FOOD & DINING
	{"uber eats", CategoryFoodDining}, {"deliveroo", CategoryFoodDining}, {"just eat", CategoryFoodDining},
	{"grocery", CategoryFoodDining}, {"supermarket", CategoryFoodDining}, {"restaurant", CategoryFoodDining},
	{"tesco", CategoryFoodDining}, {"sainsbury", CategoryFoodDining}, {"aldi", CategoryFoodDining},
	{"lidl", CategoryFoodDining}, {"carrefour", CategoryFoodDining}, {"leclerc", CategoryFoodDining},
	{"cafe", CategoryFoodDining}, {"coffee", CategoryFoodDining}, {"bakery", CategoryFoodDining},

	// ENTERTAINMENT
	{"netflix", CategoryEntertainment}, {"spotify", CategoryEntertainment}, {"disney", CategoryEntertainment},
	{"prime video", CategoryEntertainment}, {"cinema", CategoryEntertainment}, {"deezer", CategoryEntertainment},
	{"steam", CategoryEntertainment}, {"playstation", CategoryEntertainment}, {"xbox", CategoryEntertainment},

	// TRANSPORTATION
	{"uber", CategoryTransportation}, {"bolt", CategoryTransportation}, {"taxi", CategoryTransportation},
	{"fuel", CategoryTransportation}, {"petrol", CategoryTransportation}, {"gas station", CategoryTransportation},
	{"shell", CategoryTransportation}, {"sncf", CategoryTransportation}, {"ratp", CategoryTransportation},
	{"trainline", CategoryTransportation}, {"parking", CategoryTransportation},

	// SHOPPING
	{"amazon", CategoryShopping}, {"ebay", CategoryShopping}, {"zalando", CategoryShopping},
	{"ikea", CategoryShopping}, {"online shopping", CategoryShopping},

	// UTILITIES
	{"vodafone", CategoryUtilities}, {"orange", CategoryUtilities}, {"sfr", CategoryUtilities},
	{"bouygues", CategoryUtilities}, {"broadband", CategoryUtilities}, {"internet", CategoryUtilities},
	{"water bill", CategoryUtilities}, {"council tax", CategoryUtilities},

	// HEALTHCARE
	{"pharmacy", CategoryHealthcare}, {"pharmacie", CategoryHealthcare}, {"hospital", CategoryHealthcare},
	{"dental", CategoryHealthcare}, {"doctor", CategoryHealthcare},

	// ENERGY
	{"edf", CategoryEnergy}, {"engie", CategoryEnergy}, {"totalenergies", CategoryEnergy},
	{"british gas", CategoryEnergy}, {"octopus energy", CategoryEnergy}, {"electricity", CategoryEnergy},

	// INSURANCE
	{"axa", CategoryInsurance}, {"allianz", CategoryInsurance}, {"insurance", CategoryInsurance},
	{"assurance", CategoryInsurance}, {"mutuelle", CategoryInsurance},
}

// Classify maps a transaction description to its category. Pure and
// deterministic: identical input always yields identical output, so
// re-syncing a window never flips stored categories.
func Classify(description string) Category {
	normalized := strings.ToLower(strings.TrimSpace(description))
	if normalized == "" {
		return CategoryOther
	}

	for _, rule := range categoryRules {
		if strings.Contains(normalized, rule.keyword) {
			return rule.category
		}
	}

	return CategoryOther
}
