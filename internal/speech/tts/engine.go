package tts

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
)

type ProviderType string

const (
	ProviderTypeMock       ProviderType = "mock"
	ProviderTypeESpeak     ProviderType = "espeak"
	ProviderTypeSay        ProviderType = "say"  // macOS only
	ProviderTypeSAPI       ProviderType = "sapi" // Windows only
	ProviderTypeGoogle     ProviderType = "google"
	ProviderTypeElevenLabs ProviderType = "elevenlabs"

	ProviderTypeLocal ProviderType = "local" // best offline engine for the platform
	ProviderTypeCloud ProviderType = "cloud" // ElevenLabs if keyed, otherwise Google
	ProviderTypeAuto  ProviderType = "auto"  // cloud when credentials exist, else local
)

func (p ProviderType) String() string {
	return string(p)
}

// NewProvider creates the provider named by config.Type, wrapped in the clip
// cache when config.CachePath is set.
func NewProvider(config Config) (Provider, error) {
	resolved := ResolveType(config)

	var (
		provider Provider
		err      error
	)

	switch resolved {
	case ProviderTypeMock:
		provider = NewMock()

	case ProviderTypeESpeak:
		provider, err = newESpeakProvider(config)

	case ProviderTypeSay:
		if runtime.GOOS != "darwin" {
			return nil, fmt.Errorf("%w: say only supports macOS", ErrUnsupportedProvider)
		}
		provider, err = newSayProvider(config)

	case ProviderTypeSAPI:
		if runtime.GOOS != "windows" {
			return nil, fmt.Errorf("%w: SAPI only supports Windows", ErrUnsupportedProvider)
		}
		provider, err = newSAPIProvider(config)

	case ProviderTypeGoogle:
		provider, err = newGoogleProvider(config.Google)

	case ProviderTypeElevenLabs:
		provider, err = NewElevenLabs(config.ElevenLabs)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, config.Type)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"requested": config.Type,
		"provider":  provider.Name(),
	}).Debug("Created speech provider")

	if config.CachePath != "" {
		return NewCache(provider, config.CachePath)
	}
	return provider, nil
}

// ResolveType turns the meta types (auto, local, cloud) into a concrete one.
func ResolveType(config Config) ProviderType {
	switch ProviderType(config.Type) {
	case ProviderTypeAuto, "":
		if config.ElevenLabs.APIKey != "" || hasGoogleCredentials() {
			return resolveCloud(config)
		}
		return getBestLocalForPlatform()
	case ProviderTypeLocal:
		return getBestLocalForPlatform()
	case ProviderTypeCloud:
		return resolveCloud(config)
	default:
		return ProviderType(config.Type)
	}
}

func resolveCloud(config Config) ProviderType {
	if config.ElevenLabs.APIKey != "" {
		return ProviderTypeElevenLabs
	}
	return ProviderTypeGoogle
}

// getBestLocalForPlatform returns the recommended offline engine for the current platform
func getBestLocalForPlatform() ProviderType {
	switch runtime.GOOS {
	case "windows":
		return ProviderTypeSAPI
	case "darwin":
		return ProviderTypeSay
	default:
		return ProviderTypeESpeak // Cross-platform fallback
	}
}

// GetAvailableProviders returns providers usable on the current platform
func GetAvailableProviders(config Config) []ProviderType {
	providers := []ProviderType{ProviderTypeMock}

	if _, err := findESpeakExecutable(); err == nil {
		providers = append(providers, ProviderTypeESpeak)
	}

	switch runtime.GOOS {
	case "windows":
		providers = append(providers, ProviderTypeSAPI)
	case "darwin":
		providers = append(providers, ProviderTypeSay)
	}

	if hasGoogleCredentials() {
		providers = append(providers, ProviderTypeGoogle)
	}
	if config.ElevenLabs.APIKey != "" {
		providers = append(providers, ProviderTypeElevenLabs)
	}

	return providers
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
