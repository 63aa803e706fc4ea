package performance

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed gaf_catalogue.yaml
var gafCatalogueYAML []byte

type Factor struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

var (
	catalogueOnce sync.Once
	catalogue     []Factor
	catalogueIdx  map[string]Factor
	catalogueRank map[string]int
)

func loadCatalogue() {
	var factors []Factor
	if err := yaml.Unmarshal(gafCatalogueYAML, &factors); err != nil {
		panic(fmt.Sprintf("gaf catalogue: %v", err))
	}
	catalogue = factors
	catalogueIdx = make(map[string]Factor, len(factors))
	catalogueRank = make(map[string]int, len(factors))
	for i, f := range factors {
		catalogueIdx[f.Code] = f
		catalogueRank[f.Code] = i
	}
}

// GAFCatalogue lists the generic assessment factors in catalogue order.
func GAFCatalogue() []Factor {
	catalogueOnce.Do(loadCatalogue)
	out := make([]Factor, len(catalogue))
	copy(out, catalogue)
	return out
}

func LookupFactor(code string) (Factor, bool) {
	catalogueOnce.Do(loadCatalogue)
	f, ok := catalogueIdx[code]
	return f, ok
}

// sortGAFs orders agreement factors as the catalogue lists them.
func sortGAFs(gafs []GAF) {
	catalogueOnce.Do(loadCatalogue)
	sort.SliceStable(gafs, func(i, j int) bool {
		return catalogueRank[gafs[i].Factor] < catalogueRank[gafs[j].Factor]
	})
}
