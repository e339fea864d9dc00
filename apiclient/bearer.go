package apiclient

import "net/http"

// TokenSource supplies the current access token; "" means no token.
type TokenSource interface {
	AccessToken() string
}

// BearerToken returns a decorator that reads the token from source at dispatch time and sets
// it as a bearer credential. Requests are sent without the header when no token is held; the
// backend is responsible for rejecting them.
func BearerToken(source TokenSource) Decorator {
	return func(req *http.Request) {
		if accessToken := source.AccessToken(); accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+accessToken)
		}
	}
}
