package access

type AccessState string

const (
	AccessNone     AccessState = "none"
	AccessActive   AccessState = "active"
	AccessLifetime AccessState = "lifetime"
	AccessExpired  AccessState = "expired"
)

func (s AccessState) Granted() bool {
	return s == AccessActive || s == AccessLifetime
}
