package interfaces

// Service is implemented by every endpoint the daemon exposes to pages and
// to the approval surface.
type Service interface {
	Start() error
	Stop()
}
