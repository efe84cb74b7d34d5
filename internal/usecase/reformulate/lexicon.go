package reformulate

// Spanish hardware-catalog lexicon used by the heuristic parser.

// numberWords maps spelled numbers to digits. Only zero through fifteen are
// rewritten during normalization; dieciseis is recognised when pairing a
// number with a denominator.
var numberWords = map[string]string{
	"cero": "0", "uno": "1", "dos": "2", "tres": "3", "cuatro": "4",
	"cinco": "5", "seis": "6", "siete": "7", "ocho": "8", "nueve": "9",
	"diez": "10", "once": "11", "doce": "12", "trece": "13", "catorce": "14",
	"quince": "15",
}

var extraNumberWords = map[string]string{
	"dieciseis": "16", "dieciséis": "16",
}

// denominators maps fraction denominator words to their value.
var denominators = map[string]string{
	"medio": "2", "medios": "2", "mitad": "2",
	"tercio": "3", "tercios": "3",
	"cuarto": "4", "cuartos": "4",
	"quinto": "5", "quintos": "5",
	"sexto": "6", "sextos": "6",
	"septimo": "7", "septimos": "7", "séptimo": "7", "séptimos": "7",
	"octavo": "8", "octavos": "8",
	"noveno": "9", "novenos": "9",
	"decimo": "10", "decimos": "10", "décimo": "10", "décimos": "10",
}

// denominatorWords is denominators' key set in a fixed order so fuzzy ties are deterministic.
var denominatorWords = []string{
	"medio", "medios", "mitad",
	"tercio", "tercios",
	"cuarto", "cuartos",
	"quinto", "quintos",
	"sexto", "sextos",
	"septimo", "septimos", "séptimo", "séptimos",
	"octavo", "octavos",
	"noveno", "novenos",
	"decimo", "decimos", "décimo", "décimos",
}

// unitAbbreviations are expanded to full words during normalization.
// "gal" is left alone because it is also a common brand.
var unitAbbreviations = map[string]string{
	"plg":  "pulgadas",
	"plgs": "pulgadas",
	"pulg": "pulgadas",
	"mm":   "milimetros",
	"cm":   "centimetros",
	"mt":   "metros",
	"mts":  "metros",
}

// canonicalUnits maps a detected unit token to its reported form.
var canonicalUnits = map[string]string{
	"pulgadas":    "pulgadas",
	"plg":         "pulgadas",
	"mm":          "milimetros",
	"milimetros":  "milimetros",
	"metros":      "metros",
	"mt":          "metros",
	"cm":          "centimetros",
	"centimetros": "centimetros",
	"gal":         "gal",
	"galon":       "galon",
}

// inferStopWords are skipped when asking the catalog for evidence.
var inferStopWords = map[string]struct{}{
	"de": {}, "x": {}, "por": {}, "y": {}, "con": {}, "para": {},
	"pulgadas": {}, "milimetros": {}, "metros": {}, "centimetros": {},
	"mm": {}, "plg": {}, "galon": {},
}

// keywordStopWords are skipped when picking the local keyword.
var keywordStopWords = map[string]struct{}{
	"de": {}, "del": {}, "la": {}, "el": {}, "los": {}, "con": {},
	"sin": {}, "por": {}, "para": {}, "x": {},
}

// KnownProductTypes is the last-resort product type dictionary, independent of the catalog.
var KnownProductTypes = []string{
	"alicate", "angulo", "arandela", "bisagra", "cerradura", "cerrojo",
	"cilindro", "cinta", "clavo", "destornillador", "grifo", "llave",
	"martillo", "perno", "tornillo", "tuerca", "valvula",
}
