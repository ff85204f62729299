package domain

import (
	"fmt"
	"strings"
)

// QualityLevel is one of the seven named encoder quality tiers. The numeric
// value is what the transcoder consumes; the name is presentation only.
type QualityLevel int

const (
	QualityPoor      QualityLevel = 60
	QualityFair      QualityLevel = 70
	QualityGood      QualityLevel = 80
	QualityVeryGood  QualityLevel = 85
	QualityExcellent QualityLevel = 90
	QualitySuperior  QualityLevel = 95
	QualityPerfect   QualityLevel = 100
)

var qualityNames = map[QualityLevel]string{
	QualityPoor:      "poor",
	QualityFair:      "fair",
	QualityGood:      "good",
	QualityVeryGood:  "very_good",
	QualityExcellent: "excellent",
	QualitySuperior:  "superior",
	QualityPerfect:   "perfect",
}

// String returns the tier name, or the raw value for unknown levels.
func (q QualityLevel) String() string {
	if name, ok := qualityNames[q]; ok {
		return name
	}
	return fmt.Sprintf("quality(%d)", int(q))
}

// Value returns the integer passed through to the encoder.
func (q QualityLevel) Value() int { return int(q) }

// Valid reports whether q is one of the named tiers.
func (q QualityLevel) Valid() bool {
	_, ok := qualityNames[q]
	return ok
}

// ParseQualityLevel resolves a tier by name or numeric value.
func ParseQualityLevel(s string) (QualityLevel, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for level, name := range qualityNames {
		if key == name || key == fmt.Sprintf("%d", int(level)) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown quality level %q", s)
}
