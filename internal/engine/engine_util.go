package engine

func NewState() State {
	s := State{
		Phase:  PhaseWaiting,
		Winner: NoWinner,
	}
	for i := range s.Sides {
		s.Sides[i].Hand = map[int]HandCard{}
	}
	return s
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// Attacks extracts the attack sequence in the order it was resolved.
func Attacks(events []Event) []AttackEvent {
	var out []AttackEvent
	for _, e := range events {
		if e.Type == EvtAttack {
			out = append(out, e.Attack)
		}
	}
	return out
}

func opponent(player int) int { return 1 - player }

func validSeat(i int) bool { return i == 0 || i == 1 }

func validPosition(pos int) bool { return pos >= 0 && pos < MaxUnits }

// firstAlive scans front to back.
func firstAlive(side *Side) *Unit {
	for _, u := range side.Units {
		if u != nil && u.Alive {
			return u
		}
	}
	return nil
}

func defeated(side *Side) bool {
	return firstAlive(side) == nil
}

func firstFreeSlot(hand map[int]HandCard) int {
	for slot := 0; ; slot++ {
		if _, taken := hand[slot]; !taken {
			return slot
		}
	}
}
