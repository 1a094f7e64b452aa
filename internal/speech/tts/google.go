package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

const providerGoogle = "google"

// GoogleConfig parameterizes the Google Cloud Text-to-Speech provider.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS.
type GoogleConfig struct {
	// Voice is a full voice name such as "en-US-Standard-C". Empty lets the
	// API pick one for the language.
	Voice string
}

// GoogleProvider synthesizes MP3 clips with Google Cloud Text-to-Speech.
type GoogleProvider struct {
	client *texttospeech.Client
	voice  string
}

func newGoogleProvider(config GoogleConfig) (*GoogleProvider, error) {
	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		return nil, wrapError(providerGoogle, fmt.Errorf("failed to create TTS client: %w", err))
	}

	return &GoogleProvider{
		client: client,
		voice:  config.Voice,
	}, nil
}

func (g *GoogleProvider) Name() string {
	return providerGoogle
}

func (g *GoogleProvider) CacheKey() string {
	return g.voice
}

func (g *GoogleProvider) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, wrapError(providerGoogle, ErrEmptyText)
	}

	resp, err := g.client.SynthesizeSpeech(ctx, googleRequest(req, g.voice))
	if err != nil {
		return nil, wrapError(providerGoogle, fmt.Errorf("failed to synthesize: %w", err))
	}

	return &Audio{Data: resp.AudioContent, Encoding: EncodingMP3}, nil
}

func googleRequest(req Request, voice string) *texttospeechpb.SynthesizeSpeechRequest {
	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}

	// Chirp voices don't support speakingRate, skip it
	if req.Rate == RateSlow && !strings.Contains(strings.ToLower(voice), "chirp") {
		audioCfg.SpeakingRate = 0.75
	}

	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: languageCode(req.Language),
			Name:         voice,
		},
		AudioConfig: audioCfg,
	}
}

// languageCode expands a bare language ("en") into a BCP-47 code the API accepts.
func languageCode(lang string) string {
	switch strings.ToLower(lang) {
	case "", "en":
		return "en-US"
	case "de":
		return "de-DE"
	case "fr":
		return "fr-FR"
	case "es":
		return "es-ES"
	case "it":
		return "it-IT"
	case "ja":
		return "ja-JP"
	default:
		return lang
	}
}

// Verify lists voices to check that credentials work.
func (g *GoogleProvider) Verify(ctx context.Context) error {
	_, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	return wrapError(providerGoogle, err)
}

func (g *GoogleProvider) GetAvailableVoices(ctx context.Context, lang string) ([]string, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: languageCode(lang)})
	if err != nil {
		return nil, wrapError(providerGoogle, err)
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

func (g *GoogleProvider) Close() error {
	return g.client.Close()
}
