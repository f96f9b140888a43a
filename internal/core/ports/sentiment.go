package ports

import (
	"context"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

// EmotionClassifier maps free text to emotion confidences.
type EmotionClassifier interface {
	Classify(ctx context.Context, text string) (domain.EmotionProfile, error)
}
