package occupancy

// EstimateDurationMinutes returns how long a party of the given size is
// expected to hold a table when nobody has adjusted it.
func EstimateDurationMinutes(partySize int) int {
	switch {
	case partySize <= 2:
		return 60
	case partySize <= 4:
		return 120
	default:
		return 150
	}
}
