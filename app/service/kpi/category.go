package kpi

import "agrosmi/app/util/fold"

type Category string

const (
	CategoryVisual         Category = "diagnostico_visual"
	CategoryIrrigation     Category = "riego"
	CategoryProduction     Category = "produccion"
	CategoryPrice          Category = "precio"
	CategoryRisk           Category = "riesgo"
	CategorySustainability Category = "sostenibilidad"
	CategoryMultiDomain    Category = "multi_dominio"
	CategoryGeneral        Category = "general"
)

type categoryRule struct {
	category Category
	words    []string
}

// Later rules win, so a query about frost and irrigation counts as risk.
var categoryRules = []categoryRule{
	{CategoryIrrigation, []string{"agua", "riego", "regar", "humedad", "sequia"}},
	{CategoryProduction, []string{"salud", "cultivo", "planta", "enfermedad", "plaga", "fertilizar"}},
	{CategoryPrice, []string{"precio", "vender", "mercado", "costo"}},
	{CategoryRisk, []string{"riesgo", "helada", "clima", "alerta"}},
	{CategorySustainability, []string{"organico", "sostenible", "certificacion", "bio"}},
}

// Domains counted towards multi_dominio.
var domainGroups = [][]string{
	{"agua", "riego"},
	{"salud", "planta"},
	{"precio"},
	{"organico"},
}

var minimumNodes = map[Category]int{
	CategoryVisual:         5,
	CategoryIrrigation:     3,
	CategoryProduction:     3,
	CategoryPrice:          3,
	CategoryRisk:           3,
	CategorySustainability: 3,
	CategoryMultiDomain:    5,
	CategoryGeneral:        3,
}

// ClassifyQuery infers the category of a user query from keywords.
func ClassifyQuery(query string, hasImage bool) Category {
	if hasImage {
		return CategoryVisual
	}

	result := CategoryGeneral
	for _, rule := range categoryRules {
		if fold.ContainsAny(query, rule.words...) {
			result = rule.category
		}
	}

	domains := 0
	for _, group := range domainGroups {
		if fold.ContainsAny(query, group...) {
			domains++
		}
	}
	if domains >= 2 {
		result = CategoryMultiDomain
	}

	return result
}

// MinimumNodes is the smallest node count that can resolve a category.
func MinimumNodes(category Category) int {
	if n, ok := minimumNodes[category]; ok {
		return n
	}

	return minimumNodes[CategoryGeneral]
}
