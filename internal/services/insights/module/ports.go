package module

import (
	"devlog/internal/services/insights/domain"
)

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Ports exposes the insight surfaces for cross wiring
type Ports struct {
	Reader    domain.ReaderPort
	Recompute domain.RecomputePort
}
