package provider

import (
	"regexp"
	"strings"
)

const (
	promptBufferCap       = 4096
	promptBufferTruncated = 2048
)

var (
	genericPasswordRe = regexp.MustCompile(`(?i)(password|passphrase)( for [^:]+)?:\s*$`)
	authDeniedRe       = regexp.MustCompile(`(?i)sorry, try again|incorrect password|permission denied`)
)

// promptPump watches a byte stream for a privilege-escalation password
// prompt and writes the password to stdin exactly once it is seen,
// either via the caller-supplied marker or a generic fallback regex.
// It keeps a bounded rolling buffer so a prompt split across multiple
// writes is still detected, without ever growing unbounded.
type promptPump struct {
	marker       string
	password     string
	hidePrompt   bool
	writeOnce    func(s string)

	buf            strings.Builder
	markerSent     bool
	genericSent    bool
	authDenied     bool
}

func newPromptPump(become *BecomeOptions, write func(string)) *promptPump {
	if become == nil || become.InteractivePassword == "" {
		return nil
	}
	marker := become.PromptMarker
	if marker == "" {
		marker = "KATMER_SUDO_PROMPT:"
	}
	return &promptPump{
		marker:     marker,
		password:   become.InteractivePassword,
		hidePrompt: become.HidePromptLine,
		writeOnce:  write,
	}
}

// feed processes one complete line of combined stdout/stderr output.
// It returns the line to surface to the caller and whether the line
// was the matched prompt with hidePromptLine set, in which case it
// must contribute nothing at all to the caller's output (not even a
// blank line) rather than being surfaced as an empty string.
func (p *promptPump) feed(line string) (string, bool) {
	p.buf.WriteString(line)
	p.buf.WriteString("\n")
	if p.buf.Len() > promptBufferCap {
		window := p.buf.String()
		p.buf.Reset()
		p.buf.WriteString(window[len(window)-promptBufferTruncated:])
	}

	window := p.buf.String()

	if authDeniedRe.MatchString(line) {
		p.authDenied = true
	}

	// Exactly one password write per command, regardless of which
	// heuristic fires first: once either has matched, neither matches
	// again. This resolves the spec's open question about the source
	// writing the password twice when both flags are configured.
	alreadySent := p.markerSent || p.genericSent
	matchedMarker := !alreadySent && strings.Contains(window, p.marker)
	matchedGeneric := !alreadySent && !matchedMarker && genericPasswordRe.MatchString(line)

	if matchedMarker {
		p.markerSent = true
		p.writeOnce(p.password + "\n")
		if p.hidePrompt && strings.Contains(line, p.marker) {
			return "", true
		}
		return line, false
	}
	if matchedGeneric {
		p.genericSent = true
		p.writeOnce(p.password + "\n")
		return line, false
	}
	return line, false
}

func (p *promptPump) AuthDenied() bool {
	return p.authDenied
}
