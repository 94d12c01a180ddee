package vision

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// Sampler is a placeholder for real image recognition: it ignores the image
// content and produces a plausible dish description from a weighted table.
// A real vision backend replaces this without touching any other component;
// the only contract is imageRef in, free-text description out, in the
// "plat de <name> (<category>)" shape the orchestrator extracts from.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

type dish struct {
	name        string
	category    string
	ingredients []string
}

type dishGroup struct {
	weight float64
	dishes []dish
}

// Sample data only, not a contract.
var groups = []dishGroup{
	{0.35, []dish{
		{"Couscous aux légumes", "Plat traditionnel", []string{"semoule", "courgettes", "carottes", "navets", "pois chiches", "oignons", "épices"}},
		{"Tajine de poulet aux olives", "Plat mijoté", []string{"poulet", "olives vertes", "citrons confits", "gingembre", "safran", "coriandre"}},
		{"Pastilla au poulet", "Pâtisserie salée", []string{"feuilles de brick", "poulet", "amandes", "œufs", "cannelle", "sucre glace"}},
		{"Tajine de bœuf aux pruneaux", "Plat sucré-salé", []string{"bœuf", "pruneaux", "amandes", "cannelle", "gingembre", "oignons"}},
		{"Rfissa", "Plat familial", []string{"trid", "poulet", "lentilles", "fenugrec", "oignons", "safran"}},
	}},
	{0.30, []dish{
		{"Pâtes à la carbonara", "Plat italien", []string{"spaghetti", "lardons", "œufs", "parmesan", "poivre noir", "crème"}},
		{"Paella aux fruits de mer", "Plat espagnol", []string{"riz bomba", "crevettes", "moules", "calamars", "safran", "poivrons"}},
		{"Curry de poulet", "Plat indien", []string{"poulet", "lait de coco", "curry", "oignons", "gingembre", "ail"}},
		{"Risotto aux champignons", "Plat italien", []string{"riz arborio", "champignons", "parmesan", "bouillon", "vin blanc", "échalotes"}},
		{"Pad Thai", "Plat thaï", []string{"nouilles de riz", "crevettes", "œufs", "pousses de soja", "cacahuètes", "sauce tamarind"}},
	}},
	{0.20, []dish{
		{"Pizza margherita", "Fast food", []string{"pâte à pizza", "sauce tomate", "mozzarella", "basilic", "huile d'olive"}},
		{"Burger maison", "Fast food", []string{"pain burger", "steak haché", "cheddar", "salade", "tomates", "oignons"}},
		{"Sandwich club", "Sandwich", []string{"pain de mie", "poulet grillé", "bacon", "salade", "tomates", "mayonnaise"}},
		{"Wrap au thon", "Sandwich", []string{"tortilla", "thon", "avocat", "salade", "tomates cerises", "sauce yogourt"}},
	}},
	{0.15, []dish{
		{"Pot-au-feu", "Plat mijoté", []string{"bœuf", "carottes", "navets", "poireaux", "pommes de terre", "bouquet garni"}},
		{"Ratatouille", "Plat végétarien", []string{"aubergines", "courgettes", "tomates", "poivrons", "oignons", "herbes de Provence"}},
		{"Chili con carne", "Plat épicé", []string{"bœuf haché", "haricots rouges", "tomates", "oignons", "piment", "cumin"}},
		{"Blanquette de veau", "Plat traditionnel français", []string{"veau", "carottes", "champignons", "crème fraîche", "bouquet garni", "vin blanc"}},
	}},
}

func (s *Sampler) Describe(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	roll := s.rng.Float64()
	group := groups[len(groups)-1]
	cumulative := 0.0
	for _, g := range groups {
		cumulative += g.weight
		if roll <= cumulative {
			group = g
			break
		}
	}
	d := group.dishes[s.rng.Intn(len(group.dishes))]
	s.mu.Unlock()

	return fmt.Sprintf(
		"Image montrant un plat de %s (%s). Ingrédients visibles: %s. Présentation appétissante et bien préparée.",
		d.name, d.category, strings.Join(d.ingredients, ", "),
	), nil
}
