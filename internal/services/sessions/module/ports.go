package module

import (
	sessdom "devlog/internal/services/sessions/domain"
)

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Ports exposes the sessions surfaces for cross wiring
type Ports struct {
	Grouper sessdom.GrouperPort
	Reader  sessdom.ReaderPort
}
