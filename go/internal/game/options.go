package game

// ContentRating selects which question pool tone a room allows.
type ContentRating string

const (
	RatingFamily   ContentRating = "family"
	RatingStandard ContentRating = "standard"
)

// Options are the host-editable room settings. Mutable only while the room
// is in the lobby.
type Options struct {
	ContentRating       ContentRating `json:"contentRating"`
	MiddleCount         int           `json:"middleCount"`
	SelectedMiddleGames []string      `json:"selectedMiddleGames"`
}

// DefaultOptions returns the settings a fresh room starts with.
func DefaultOptions() Options {
	return Options{
		ContentRating:       RatingStandard,
		MiddleCount:         0,
		SelectedMiddleGames: nil,
	}
}

// AvailableMiddleGames lists the middle games a room may enable. Always
// empty for now; selection is a paid feature that ships later.
func AvailableMiddleGames(r *Room) []string {
	return []string{}
}

// OptionsUpdate carries the host's requested option changes. Pointer fields
// distinguish "unset" from zero values.
type OptionsUpdate struct {
	ContentRating *string `json:"contentRating"`
	MiddleCount   *int    `json:"middleCount"`
}

// SanitizeOptions merges an update into the room's current options, ignoring
// invalid ratings and clamping middleCount to what the room can actually run.
func SanitizeOptions(r *Room, incoming OptionsUpdate) Options {
	next := r.Options

	if incoming.ContentRating != nil {
		switch ContentRating(*incoming.ContentRating) {
		case RatingFamily, RatingStandard:
			next.ContentRating = ContentRating(*incoming.ContentRating)
		}
	}

	if incoming.MiddleCount != nil {
		cap := len(AvailableMiddleGames(r))
		if cap > 3 {
			cap = 3
		}
		mc := *incoming.MiddleCount
		if mc < 0 {
			mc = 0
		}
		if mc > cap {
			mc = cap
		}
		next.MiddleCount = mc
	}

	next.SelectedMiddleGames = nil
	return next
}
