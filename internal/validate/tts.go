package validate

import "github.com/felipepmaragno/solmate-api/internal/domain"

// Voices is the single accepted voice list.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

var formats = []string{
	string(domain.FormatMP3),
	string(domain.FormatOpus),
	string(domain.FormatAAC),
	string(domain.FormatFLAC),
}

// TTS validates a decoded speech body. defaultVoice is used when the voice is
// absent or not in Voices.
func TTS(body any, limits Limits, defaultVoice string) Result[domain.TTSRequest] {
	limits = limits.withDefaults()
	if !contains(Voices, defaultVoice) {
		defaultVoice = "nova"
	}

	res := Result[domain.TTSRequest]{
		Valid: true,
		Data: domain.TTSRequest{
			Voice:  defaultVoice,
			Format: domain.FormatMP3,
		},
	}

	obj, ok := asObject(body)
	if !ok {
		res.fail("request body must be a JSON object")
		return res
	}

	text, ok := obj["text"].(string)
	switch {
	case !ok:
		res.fail("text must be a string")
	case Sanitize(text, limits.MaxTTSChars) == "":
		res.fail("text must not be empty")
	default:
		res.Data.Text = Sanitize(text, limits.MaxTTSChars)
	}

	if v, ok := obj["voice"].(string); ok && contains(Voices, v) {
		res.Data.Voice = v
	}
	if f, ok := obj["format"].(string); ok && contains(formats, f) {
		res.Data.Format = domain.AudioFormat(f)
	}

	return res
}
