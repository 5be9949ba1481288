package module

import (
	ingestdom "devlog/internal/services/ingest/domain"
)

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Ports exposes the ingest service for cross wiring
type Ports struct {
	Ingest ingestdom.ServicePort
}
