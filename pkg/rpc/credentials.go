package rpc

// Credentials produce the login call issued right after the handshake.
type Credentials interface {
	LoginCall() (method string, params []interface{})
}

// APIKey authenticates with an API key created on the server.
type APIKey string

func (k APIKey) LoginCall() (string, []interface{}) {
	return "auth.login_with_api_key", []interface{}{string(k)}
}

// Password authenticates with a local user account. OTP is only sent when set.
type Password struct {
	Username string
	Password string
	OTP      string
}

func (p Password) LoginCall() (string, []interface{}) {
	params := []interface{}{p.Username, p.Password}
	if p.OTP != "" {
		params = append(params, p.OTP)
	}
	return "auth.login", params
}

// Token authenticates with a token previously issued by auth.generate_token.
type Token string

func (t Token) LoginCall() (string, []interface{}) {
	return "auth.login_with_token", []interface{}{string(t)}
}
