package seat

// Inventory is an immutable snapshot of one center's seats as delivered by the feed.
type Inventory struct {
	centerID string
	order    []string
	seats    map[string]Seat
}

// View pairs a seat with the status the grid should show for it.
type View struct {
	Seat    Seat          `json:"seat"`
	Display DisplayStatus `json:"display_status"`
}

// Summary counts seats per display status, the grid legend.
type Summary struct {
	Available   int `json:"available"`
	Booked      int `json:"booked"`
	InUse       int `json:"in_use"`
	Maintenance int `json:"maintenance"`
	Selected    int `json:"selected"`
}

// NewInventory builds a snapshot. Feed order is kept; a repeated id keeps its first
// position and the last reported values.
func NewInventory(centerID string, seats []Seat) *Inventory {
	inv := &Inventory{
		centerID: centerID,
		order:    make([]string, 0, len(seats)),
		seats:    make(map[string]Seat, len(seats)),
	}
	for _, s := range seats {
		if _, exists := inv.seats[s.ID]; !exists {
			inv.order = append(inv.order, s.ID)
		}
		inv.seats[s.ID] = s
	}
	return inv
}

func (inv *Inventory) CenterID() string {
	return inv.centerID
}

// Get looks up a seat by id.
func (inv *Inventory) Get(seatID string) (Seat, bool) {
	s, ok := inv.seats[seatID]
	return s, ok
}

func (inv *Inventory) Len() int {
	return len(inv.order)
}

// Seats returns a copy of the seats in feed order.
func (inv *Inventory) Seats() []Seat {
	out := make([]Seat, 0, len(inv.order))
	for _, id := range inv.order {
		out = append(out, inv.seats[id])
	}
	return out
}

// View overlays sel on every seat.
func (inv *Inventory) View(sel Selection) []View {
	out := make([]View, 0, len(inv.order))
	for _, id := range inv.order {
		s := inv.seats[id]
		out = append(out, View{Seat: s, Display: DeriveDisplayStatus(s, sel)})
	}
	return out
}

// Summary counts display statuses under sel.
func (inv *Inventory) Summary(sel Selection) Summary {
	var sum Summary
	for _, id := range inv.order {
		switch DeriveDisplayStatus(inv.seats[id], sel) {
		case DisplayAvailable:
			sum.Available++
		case DisplayBooked:
			sum.Booked++
		case DisplayInUse:
			sum.InUse++
		case DisplayMaintenance:
			sum.Maintenance++
		case DisplaySelected:
			sum.Selected++
		}
	}
	return sum
}
