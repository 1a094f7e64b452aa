//go:build !darwin

package tts

func newSayProvider(Config) (Provider, error) {
	return nil, ErrUnsupportedProvider
}
