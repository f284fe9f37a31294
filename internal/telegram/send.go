package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mtzanidakis/digifuse/internal/domain"
)

// chunkMessage splits a message into chunks that fit within Telegram's message size limit.
func chunkMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		// Try to split at a newline
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}
		for cutAt > 1 && !utf8.RuneStart(text[cutAt]) {
			cutAt--
		}

		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}

	return chunks
}

// parseFuseCommand extracts the two names from "/fuse A B". Names with
// spaces are double-quoted: /fuse "Metal Greymon" Gabumon. The bot username
// suffix ("/fuse@digifuse_bot") is accepted.
func parseFuseCommand(text string) (string, string, bool) {
	args, ok := splitArgs(text)
	if !ok || len(args) != 3 {
		return "", "", false
	}
	cmd, _, _ := strings.Cut(args[0], "@")
	if cmd != "/fuse" || args[1] == "" || args[2] == "" {
		return "", "", false
	}
	return args[1], args[2], true
}

// splitArgs splits on whitespace, keeping double-quoted runs together. An
// unterminated quote is an error.
func splitArgs(text string) ([]string, bool) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range text {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			if started {
				args = append(args, strings.TrimSpace(cur.String()))
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, false
	}
	if started {
		args = append(args, strings.TrimSpace(cur.String()))
	}
	return args, true
}

func formatFusion(nameA, nameB string, r domain.FusionResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s + %s = %s\n", nameA, nameB, r.Name)
	fmt.Fprintf(&sb, "Level: %s\nType: %s\n\n", r.Level, r.Type)
	sb.WriteString(r.Description)
	if strings.HasPrefix(r.FusionImage, "http://") || strings.HasPrefix(r.FusionImage, "https://") {
		sb.WriteString("\n\n")
		sb.WriteString(r.FusionImage)
	}
	return sb.String()
}
