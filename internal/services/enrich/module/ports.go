package module

import (
	"devlog/internal/services/enrich/domain"
)

// Ports exposes the enrichment surfaces for cross wiring
type Ports struct {
	Narrative domain.NarrativePort
	Similar   domain.SimilarPort
	Weekly    domain.WeeklyPort
}
