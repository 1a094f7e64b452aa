package tts

import "strings"

// parseSayVoices reads `say -v ?` output, one voice per line:
//
//	Bad News            en_US    # The light you see at the end of the tunnel...
//
// Names may contain spaces; the locale is the last field before the '#'.
func parseSayVoices(output, language string) []string {
	voices := make([]string, 0)

	for _, line := range strings.Split(output, "\n") {
		spec, _, _ := strings.Cut(line, "#")
		fields := strings.Fields(spec)
		if len(fields) < 2 {
			continue
		}

		locale := fields[len(fields)-1]
		if language != "" && !strings.HasPrefix(strings.ToLower(locale), strings.ToLower(language)) {
			continue
		}
		voices = append(voices, strings.Join(fields[:len(fields)-1], " "))
	}

	return voices
}
