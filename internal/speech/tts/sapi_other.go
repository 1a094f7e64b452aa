//go:build !windows

package tts

func newSAPIProvider(Config) (Provider, error) {
	return nil, ErrUnsupportedProvider
}
