package reformulate

import (
	"context"
	"testing"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	"github.com/kailas-cloud/catalogsearch/internal/usecase/vocabulary"
)

// --- Mocks ---

type fixedInferrer struct {
	term  string
	calls int
}

func (f *fixedInferrer) Infer(_ context.Context, _ string) string {
	f.calls++
	return f.term
}

func galVocabulary() *vocabulary.Vocabulary {
	return vocabulary.Build([]domain.Product{
		{ID: 1, Name: "Cerrojo GAL 5/8"},
		{ID: 2, Name: "Cerrojo GAL 1/2"},
		{ID: 3, Name: "Cerrojo GAL 3/4"},
	})
}

// --- Tests ---

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"octabos", "octavos", 1},
		{"ABC", "abc", 0},
		{"séptimo", "septimo", 1},
		{"cerrojo", "cerrojo", 0},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		brand string
		want  string
	}{
		{"lowercase and abbreviation", "  Cerrojo 5/8 PLG  ", "", "cerrojo 5/8 pulgadas"},
		{"abbreviation with dot", "tubo 10 mm. largo", "", "tubo 10 milimetros largo"},
		{"punctuation stripped", `cinta (aislante); "negra"`, "", "cinta aislante negra"},
		{"spelled fraction", "cerrojo cinco octavos", "", "cerrojo 5/8"},
		{"digit and denominator", "llave 3 cuartos", "", "llave 3/4"},
		{"gal kept", "pintura 1 gal", "", "pintura 1 gal"},
		{"brand guards abbreviation", "tubo MM 10", "MM", "tubo mm 10"},
		{"number words", "doce clavos", "", "12 clavos"},
		{"blank", "   ", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeText(tt.raw, tt.brand); got != tt.want {
				t.Errorf("normalizeText(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHeuristic_BrandIsNotUnit(t *testing.T) {
	h := NewHeuristic(galVocabulary(), nil)

	got := h.Reformulate(context.Background(), "cerrojo gal cinco octavos")
	want := domain.QueryAttributes{
		Brand:       "GAL",
		Fraction:    "5/8",
		Normalized:  "cerrojo gal 5/8",
		PrimaryTerm: "cerrojo",
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestHeuristic_UnitAfterBrand(t *testing.T) {
	h := NewHeuristic(galVocabulary(), nil)

	got := h.Reformulate(context.Background(), "cerrojo gal 5/8 x 16 pulgadas")
	if got.Brand != "GAL" {
		t.Errorf("Brand = %q, want GAL", got.Brand)
	}
	if got.Unit != "pulgadas" {
		t.Errorf("Unit = %q, want pulgadas", got.Unit)
	}
	if got.Size != "16" || got.Fraction != "5/8" {
		t.Errorf("got size=%q fraction=%q, want 16 and 5/8", got.Size, got.Fraction)
	}
}

func TestHeuristic_MisspelledDenominator(t *testing.T) {
	h := NewHeuristic(galVocabulary(), nil)

	got := h.Reformulate(context.Background(), "cerrojo cinco octabos")
	if got.Fraction != "5/8" {
		t.Errorf("Fraction = %q, want 5/8", got.Fraction)
	}
	if got.Brand != "" {
		t.Errorf("Brand = %q, want empty", got.Brand)
	}
	if got.PrimaryTerm != "cerrojo" {
		t.Errorf("PrimaryTerm = %q, want cerrojo", got.PrimaryTerm)
	}
}

func TestHeuristic_SizeAndUnit(t *testing.T) {
	h := NewHeuristic(vocabulary.Empty(), nil)

	tests := []struct {
		raw                  string
		size, unit, fraction string
	}{
		{"cerrojo 5/8 x 16 pulgadas", "16", "pulgadas", "5/8"},
		{"cerrojo 5/8 pulgadas", "", "pulgadas", "5/8"},
		{"cerrojo 5/8 x 16", "16", "", "5/8"},
		{"tabla 2 x 4", "2", "", ""},
		{"tabla 2 por 4", "2", "", ""},
		{"tubo 10 mm", "10", "milimetros", ""},
		{"pintura 1 gal", "1", "gal", ""},
		{"cinta 2.5 metros", "2.5", "metros", ""},
		{"cinta 3/4 pulgadas x 10", "10", "pulgadas", "3/4"},
		{"tubo metros 2 x 3", "2", "metros", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := h.Reformulate(context.Background(), tt.raw)
			if got.Size != tt.size || got.Unit != tt.unit || got.Fraction != tt.fraction {
				t.Errorf("got size=%q unit=%q fraction=%q, want size=%q unit=%q fraction=%q",
					got.Size, got.Unit, got.Fraction, tt.size, tt.unit, tt.fraction)
			}
		})
	}
}

func TestHeuristic_PrimaryTermOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("inferrer wins", func(t *testing.T) {
		inf := &fixedInferrer{term: "candado"}
		h := NewHeuristic(galVocabulary(), inf)
		if got := h.Reformulate(ctx, "cerrojo gal").PrimaryTerm; got != "candado" {
			t.Errorf("PrimaryTerm = %q, want candado", got)
		}
		if inf.calls != 1 {
			t.Errorf("inferrer calls = %d, want 1", inf.calls)
		}
	})

	t.Run("fuzzy mined type", func(t *testing.T) {
		h := NewHeuristic(galVocabulary(), &fixedInferrer{})
		if got := h.Reformulate(ctx, "cerrojjo dorado").PrimaryTerm; got != "cerrojo" {
			t.Errorf("PrimaryTerm = %q, want cerrojo", got)
		}
	})

	t.Run("known type exact", func(t *testing.T) {
		h := NewHeuristic(vocabulary.Empty(), nil)
		if got := h.Reformulate(ctx, "tuerca hexagonal").PrimaryTerm; got != "tuerca" {
			t.Errorf("PrimaryTerm = %q, want tuerca", got)
		}
	})

	t.Run("known type fuzzy", func(t *testing.T) {
		h := NewHeuristic(vocabulary.Empty(), nil)
		if got := h.Reformulate(ctx, "tornilo galvanizado").PrimaryTerm; got != "tornillo" {
			t.Errorf("PrimaryTerm = %q, want tornillo", got)
		}
	})

	t.Run("nothing close", func(t *testing.T) {
		h := NewHeuristic(vocabulary.Empty(), nil)
		if got := h.Reformulate(ctx, "xyzzyx").PrimaryTerm; got != "" {
			t.Errorf("PrimaryTerm = %q, want empty", got)
		}
	})
}

func TestHeuristic_BlankInput(t *testing.T) {
	inf := &fixedInferrer{term: "cerrojo"}
	h := NewHeuristic(galVocabulary(), inf)

	if got := h.Reformulate(context.Background(), "  \t "); !got.IsEmpty() {
		t.Errorf("expected empty attributes, got %+v", got)
	}
	if inf.calls != 0 {
		t.Errorf("inferrer called %d times for blank input", inf.calls)
	}
}

func TestHeuristic_Normalize(t *testing.T) {
	h := NewHeuristic(vocabulary.Empty(), nil)

	got := h.Normalize("Tornillo de 5/8 x 16")
	want := Normalized{Text: "tornillo de 5/8 x 16", Keyword: "tornillo", Fraction: "5/8", Size: "16"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	got = h.Normalize("de la 5/8 caja")
	if got.Keyword != "caja" {
		t.Errorf("Keyword = %q, want caja", got.Keyword)
	}

	if got = h.Normalize(""); got != (Normalized{}) {
		t.Errorf("expected zero value, got %+v", got)
	}
}
