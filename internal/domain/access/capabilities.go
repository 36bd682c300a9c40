package access

func CapabilitiesFor(state AccessState) []string {
	switch state {
	case AccessActive, AccessLifetime:
		return []string{"use_services", "track_progress", "save", "favorite"}
	case AccessExpired:
		return []string{"renew"}
	default:
		return []string{"purchase"}
	}
}
