package domain

// Avatar is the public face of an account, embedded in the session token.
type Avatar struct {
	Image       string `json:"image,omitempty"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// Session is the authenticated viewer identity handed to service operations.
// Its production (signing, cookie I/O) lives in the transport layer; services
// only consume it. A nil *Session means the viewer is unauthenticated — the
// transport decides whether that turns into an error or a redirect.
type Session struct {
	ID     string `json:"id"` // hex account id
	Avatar Avatar `json:"avatar"`
}
