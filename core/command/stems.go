package command

import "strings"

// Stem vocabulary accepted by "select <stem>".
const (
	StemVocals        = "vocals"
	StemBass          = "bass"
	StemPercussion    = "percussion"
	StemOther         = "other"
	StemInstrumental  = "instrumental"
	StemOriginalAudio = "original audio"
)

// Stems lists the vocabulary in upload-form order.
var Stems = []string{StemVocals, StemBass, StemPercussion, StemOther, StemInstrumental, StemOriginalAudio}

var stemAliases = map[string]string{
	"vocal":          StemVocals,
	"vocals":         StemVocals,
	"voice":          StemVocals,
	"bass":           StemBass,
	"drum":           StemPercussion,
	"drums":          StemPercussion,
	"percussion":     StemPercussion,
	"other":          StemOther,
	"others":         StemOther,
	"instrument":     StemInstrumental,
	"instruments":    StemInstrumental,
	"instrumental":   StemInstrumental,
	"original":       StemOriginalAudio,
	"source":         StemOriginalAudio,
	"original audio": StemOriginalAudio,
}

// NormalizeStem maps a spoken stem name onto the vocabulary.
func NormalizeStem(spoken string) (string, bool) {
	s, ok := stemAliases[strings.Join(strings.Fields(strings.ToLower(spoken)), " ")]
	return s, ok
}

// layerFragment maps a spoken stem onto the fragment searched in layer
// names and ids.
func layerFragment(spoken string) string {
	switch spoken {
	case "original audio":
		return "original"
	case "percussion":
		return "drums"
	default:
		return spoken
	}
}
