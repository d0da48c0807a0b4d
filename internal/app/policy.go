package app

import "github.com/dkeye/peercall/internal/domain"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a connection whose transport refused a frame.
type Policy interface {
	OnBackPressure(id domain.ConnID, err error) BackpressureAction
}

// SimplePolicy treats any send failure as a disconnect.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.ConnID, error) BackpressureAction {
	return KickMember
}
