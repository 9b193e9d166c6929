// internal/models/category.go
package models

import "tourism-retrieval/internal/common/textutil"

const (
	CategoryHotel      = "hotel"
	CategoryRestaurant = "restaurant"
	CategoryAttraction = "attraction"
	CategoryEvent      = "event"
	CategoryTransport  = "transport"
	CategoryTourism    = "tourism"
	CategoryGeneral    = "general"
)

// categoryKeywords is checked in order; the first category with a matching
// keyword wins. Keywords are stored folded (no accents).
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryHotel, []string{"hotel", "hoteis", "hospedagem", "pousada", "pousadas"}},
	{CategoryRestaurant, []string{"restaurante", "restaurantes", "comida", "comer", "gastronomia"}},
	{CategoryAttraction, []string{"fazer", "atrativo", "atrativos", "atracao", "atracoes", "passeio", "passeios", "gruta"}},
	{CategoryEvent, []string{"evento", "eventos", "festival"}},
	{CategoryTransport, []string{"onibus", "transporte", "aeroporto", "terminal"}},
	{CategoryTourism, []string{"turismo", "viagem"}},
}

// InferCategory classifies free text by intent keywords, falling back to
// CategoryGeneral.
func InferCategory(text string) string {
	tokens := textutil.Tokens(text)
	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			for _, tok := range tokens {
				if tok == kw {
					return ck.category
				}
			}
		}
	}
	return CategoryGeneral
}
