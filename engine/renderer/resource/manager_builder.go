package resource

// ManagerOption is a functional option for configuring a Manager.
type ManagerOption func(*Manager)

// WithColorWidth caps the width of the region color textures. By default they are as wide as the
// device allows, so most region counts fit a single row.
//
// Parameters:
//   - width: the color texture width in texels
//
// Returns:
//   - ManagerOption: functional option to set the color texture width
func WithColorWidth(width uint32) ManagerOption {
	return func(m *Manager) {
		m.colorWidth = width
	}
}
