package session

import "fmt"

// GoToQuestion jumps to an absolute question index. Under forward-lock a
// target in an earlier section fails with ErrSectionLocked, and a target in a
// later section closes every section before it.
func (s *Session) GoToQuestion(globalIndex int) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	if globalIndex < 0 || globalIndex >= s.total {
		return fmt.Errorf("%w: question %d", ErrOutOfRange, globalIndex)
	}
	target := s.sectionOf(globalIndex)
	if s.cfg.Policy.ForwardLock && target < s.activeSection {
		return fmt.Errorf("%w: question %d is in section %d, active section is %d",
			ErrSectionLocked, globalIndex, target, s.activeSection)
	}
	if target != s.activeSection {
		s.enterSection(target)
	}
	s.active = globalIndex
	return nil
}

// GoNext moves one question forward. It is a no-op on the last question.
// Crossing into the next section under forward-lock closes the one left.
func (s *Session) GoNext() error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	next := s.active + 1
	if next >= s.total {
		return nil
	}
	if target := s.sectionOf(next); target != s.activeSection {
		s.enterSection(target)
	}
	s.active = next
	return nil
}

// GoPrevious moves one question back. It is a no-op on the first question and
// fails with ErrSectionLocked when it would re-enter a closed section.
func (s *Session) GoPrevious() error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	if s.active == 0 {
		return nil
	}
	prev := s.active - 1
	target := s.sectionOf(prev)
	if s.cfg.Policy.ForwardLock && target < s.activeSection {
		return fmt.Errorf("%w: section %d", ErrSectionLocked, target)
	}
	s.active = prev
	s.activeSection = target
	return nil
}

// AdvanceSection moves to the first question of the next section. Under
// forward-lock every earlier section becomes unreachable.
func (s *Session) AdvanceSection() error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	if s.activeSection >= len(s.offsets)-1 {
		return fmt.Errorf("%w: no section after %d", ErrOutOfRange, s.activeSection)
	}
	s.enterSection(s.activeSection + 1)
	return nil
}

func (s *Session) enterSection(k int) {
	s.active = s.offsets[k]
	s.activeSection = k
	if s.cfg.Policy.ForwardLock {
		s.firstOpen = k
	}
}
