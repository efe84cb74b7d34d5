package reformulate

import (
	"strings"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

const extractionTemplate = `Eres un asistente que interpreta búsquedas en un catálogo de ferretería.
Consulta del usuario: "{query}"

Extrae los atributos de la consulta y devuelve únicamente un objeto JSON con estas claves:
- "primary_term": tipo de producto principal en singular y minúsculas (por ejemplo "cerrojo", "tornillo"), o null.
- "brand": marca mencionada, o null.
- "fraction": medida fraccionaria con la forma n/d (por ejemplo "5/8"), o null. Convierte fracciones escritas en palabras ("cinco octavos" es "5/8").
- "size": número de la medida principal sin unidad (por ejemplo "16"), o null.
- "unit": unidad de la medida ("pulgadas", "milimetros", "centimetros", "metros", "galon"), o null.
- "normalized": la consulta corregida, en minúsculas y sin signos de puntuación.

No agregues texto fuera del JSON.`

const extractionInstruction = "Analiza y devuelve SOLO EL JSON."

// extractionPrompt builds the attribute extraction prompt for raw.
func extractionPrompt(raw string) domain.Prompt {
	return domain.Prompt{
		System: strings.ReplaceAll(extractionTemplate, "{query}", raw),
		User:   extractionInstruction,
	}
}
