package learning

import "strings"

const defaultRemedialKey = "default"

// defaultRemedialSources are suggested for knowledge gaps when configuration
// names nothing for the gap's category.
var defaultRemedialSources = map[string][]string{
	"hotel":      {"https://turismo.ms.gov.br/hoteis", "https://www.ms.gov.br/hospedagem"},
	"restaurant": {"https://turismo.ms.gov.br/gastronomia", "https://visitms.com.br/restaurantes"},
	"attraction": {"https://turismo.ms.gov.br/atrativos", "https://visitms.com.br/atracoes"},
	"event":      {"https://turismo.ms.gov.br/eventos", "https://secult.ms.gov.br/agenda"},
	"transport":  {"https://www.ms.gov.br/transporte", "https://www.ms.gov.br/viagem"},
	"default":    {"https://turismo.ms.gov.br", "https://www.ms.gov.br"},
}

// mergeRemedial overlays configured lists on the defaults. Keys are
// lowercased; an empty configured list does not erase a default.
func mergeRemedial(configured map[string][]string) map[string][]string {
	out := make(map[string][]string, len(defaultRemedialSources)+len(configured))
	for k, v := range defaultRemedialSources {
		out[k] = v
	}
	for k, v := range configured {
		if len(v) == 0 {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func (s *Service) remedialFor(category string) []string {
	list, ok := s.remedial[category]
	if !ok {
		list = s.remedial[defaultRemedialKey]
	}
	return append([]string(nil), list...)
}
