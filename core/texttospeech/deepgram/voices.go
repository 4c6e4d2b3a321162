package deepgram

import "slices"

var availableVoices = []string{
	"aura-2-thalia-en",
	"aura-2-andromeda-en",
	"aura-2-helena-en",
	"aura-2-apollo-en",
	"aura-2-arcas-en",
	"aura-2-aries-en",
	"aura-2-orion-en",
	"aura-2-luna-en",
	"aura-asteria-en",
	"aura-orion-en",
}

func GetAvailableVoices() []string {
	return slices.Clone(availableVoices)
}

func isAvailableVoice(voice string) bool {
	return slices.Contains(availableVoices, voice)
}
