package model

import (
	"path"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// OriginalLayerID is the canonical id of the unmodified mix.
const OriginalLayerID = "original"

// Layer is a derived view over one audio file of a track.
type Layer struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Icon        string  `json:"icon"` // resolved to an icon by the UI
	Volume      float64 `json:"volume"`
	File        string  `json:"file"`
}

type stemInfo struct {
	id          string
	displayName string
	icon        string
}

// stemTable maps a lower-cased file base name to its canonical stem.
var stemTable = map[string]stemInfo{
	"vocals":        {"vocals", "Vocals", "mic"},
	"vocal":         {"vocals", "Vocals", "mic"},
	"bass":          {"bass", "Bass", "guitar"},
	"drums":         {"drums", "Percussion", "drum"},
	"drum":          {"drums", "Percussion", "drum"},
	"other":         {"other", "Other", "music"},
	"instrumental":  {"instrumental", "Instrumental", "piano"},
	"accompaniment": {"instrumental", "Instrumental", "piano"},
	"original":      {OriginalLayerID, "Original", "disc"},
	"source":        {OriginalLayerID, "Original", "disc"},
	"mix":           {OriginalLayerID, "Original", "disc"},
}

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
	".opus": true,
	".webm": true,
}

// IsAudioFile reports whether name carries an audio extension.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(path.Ext(name))]
}

// BaseName strips directories and the extension.
func BaseName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// ClassifyFile returns the layer a file would produce, false for non-audio.
func ClassifyFile(name string) (Layer, bool) {
	if !IsAudioFile(name) {
		return Layer{}, false
	}
	base := BaseName(name)
	if info, ok := stemTable[strings.ToLower(base)]; ok {
		return Layer{ID: info.id, DisplayName: info.displayName, Icon: info.icon, Volume: 1, File: name}, true
	}
	// ad hoc layer named from the file
	return Layer{
		ID:          strings.ToLower(base),
		DisplayName: adhocDisplayName(base),
		Icon:        "wave",
		Volume:      1,
		File:        name,
	}, true
}

func adhocDisplayName(base string) string {
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	if len(words) == 0 {
		return base
	}
	return strings.Join(words, " ")
}

// GenerateLayersFromFiles derives the layer list of a track. Layers are
// unique by id (first file wins); "original" sorts first, the rest
// alphabetically by display name.
func GenerateLayersFromFiles(files []string) []Layer {
	seen := make(map[string]bool)
	layers := make([]Layer, 0, len(files))
	for _, name := range files {
		layer, ok := ClassifyFile(name)
		if !ok || seen[layer.ID] {
			continue
		}
		seen[layer.ID] = true
		layers = append(layers, layer)
	}

	sort.SliceStable(layers, func(i, j int) bool {
		a, b := layers[i], layers[j]
		if (a.ID == OriginalLayerID) != (b.ID == OriginalLayerID) {
			return a.ID == OriginalLayerID
		}
		return strings.ToLower(a.DisplayName) < strings.ToLower(b.DisplayName)
	})
	return layers
}

// FindLayer returns the first layer whose display name or id contains
// fragment, case-insensitively.
func FindLayer(layers []Layer, fragment string) (Layer, bool) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return Layer{}, false
	}
	for _, l := range layers {
		if strings.Contains(strings.ToLower(l.DisplayName), fragment) || strings.Contains(l.ID, fragment) {
			return l, true
		}
	}
	return Layer{}, false
}
