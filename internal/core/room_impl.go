package core

import (
	"slices"

	"github.com/dkeye/peercall/internal/domain"
)

// MemberSet is an insertion-ordered set of connection ids.
// It is not safe for concurrent use; the owner guards it.
type MemberSet struct {
	order []domain.ConnID
	index map[domain.ConnID]struct{}
}

func NewMemberSet() *MemberSet {
	return &MemberSet{index: make(map[domain.ConnID]struct{})}
}

// Add reports whether id was newly added.
func (s *MemberSet) Add(id domain.ConnID) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Remove reports whether id was a member.
func (s *MemberSet) Remove(id domain.ConnID) bool {
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

func (s *MemberSet) Has(id domain.ConnID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *MemberSet) Len() int { return len(s.order) }

// Snapshot returns the members in insertion order.
func (s *MemberSet) Snapshot() []domain.ConnID {
	return slices.Clone(s.order)
}
