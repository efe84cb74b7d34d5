package reformulate

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// --- Mocks ---

type mockTextSearcher struct {
	totals map[string]int64
	errs   map[string]error
	probed []string
	limits []int
}

func (m *mockTextSearcher) SearchTextContains(_ context.Context, term string, limit int) (domain.Page, error) {
	m.probed = append(m.probed, term)
	m.limits = append(m.limits, limit)
	if err := m.errs[term]; err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Total: m.totals[term]}, nil
}

// --- Tests ---

func TestCatalogInferrer_PicksMostMatches(t *testing.T) {
	cat := &mockTextSearcher{totals: map[string]int64{"cerrojo": 12, "seguridad": 30}}
	inf := NewCatalogInferrer(cat, nil)

	if got := inf.Infer(context.Background(), "Cerrojo de seguridad para puerta"); got != "seguridad" {
		t.Errorf("Infer = %q, want seguridad", got)
	}
	for _, p := range cat.probed {
		if p == "de" || p == "para" {
			t.Errorf("stop word %q probed", p)
		}
	}
	for _, l := range cat.limits {
		if l != 1 {
			t.Errorf("probe limit = %d, want 1", l)
		}
	}
}

func TestCatalogInferrer_ErrorsCountAsZero(t *testing.T) {
	cat := &mockTextSearcher{
		totals: map[string]int64{"cerrojo": 4, "seguridad": 30},
		errs:   map[string]error{"seguridad": errors.New("connection reset")},
	}
	inf := NewCatalogInferrer(cat, nil)

	if got := inf.Infer(context.Background(), "cerrojo seguridad"); got != "cerrojo" {
		t.Errorf("Infer = %q, want cerrojo", got)
	}
}

func TestCatalogInferrer_NoMatches(t *testing.T) {
	cat := &mockTextSearcher{}
	inf := NewCatalogInferrer(cat, nil)

	if got := inf.Infer(context.Background(), "cerrojo dorado"); got != "" {
		t.Errorf("Infer = %q, want empty", got)
	}
	if got := inf.Infer(context.Background(), "  "); got != "" {
		t.Errorf("Infer(blank) = %q, want empty", got)
	}
}

func TestCatalogInferrer_ProbesEachTokenOnce(t *testing.T) {
	cat := &mockTextSearcher{totals: map[string]int64{"clavo": 3}}
	inf := NewCatalogInferrer(cat, nil)

	inf.Infer(context.Background(), "clavo clavo 16 pulgadas")
	if len(cat.probed) != 1 || cat.probed[0] != "clavo" {
		t.Errorf("probed = %v, want [clavo]", cat.probed)
	}
}
