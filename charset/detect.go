package charset

import (
	"github.com/saintfish/chardet"
)

// Detector guesses the charset of a payload. Confidence is in [0, 1].
type Detector interface {
	Detect(payload []byte) (charset string, confidence float64, ok bool)
}

// NoopDetector never produces a guess.
type NoopDetector struct{}

func (NoopDetector) Detect([]byte) (string, float64, bool) {
	return "", 0, false
}

// ChardetDetector guesses with the ICU-derived statistical detector.
type ChardetDetector struct{}

func (ChardetDetector) Detect(payload []byte) (string, float64, bool) {
	if len(payload) == 0 {
		return "", 0, false
	}
	// TextDetector keeps recognizer state, so every call gets its own.
	result, err := chardet.NewTextDetector().DetectBest(payload)
	if err != nil || result == nil || result.Charset == "" {
		return "", 0, false
	}
	return result.Charset, float64(result.Confidence) / 100, true
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(payload []byte) (string, float64, bool)

func (f DetectorFunc) Detect(payload []byte) (string, float64, bool) {
	return f(payload)
}
