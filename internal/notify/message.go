package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	FromName string
	From     string
	To       []string
	Cc       []string
	Subject  string
	Body     string
}

// Recipients returns the envelope recipients, duplicates and blanks removed
func (m Message) Recipients() []string {
	seen := make(map[string]bool)
	var out []string
	for _, addr := range append(append([]string(nil), m.To...), m.Cc...) {
		key := strings.ToLower(strings.TrimSpace(addr))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(addr))
	}
	return out
}

// Validate rejects addresses that could not be put in a header safely
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.From, err)
	}
	if len(m.To) == 0 {
		return fmt.Errorf("no recipient")
	}
	for _, addr := range m.Recipients() {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
	}
	if strings.ContainsAny(m.FromName, "\r\n") {
		return fmt.Errorf("invalid sender name")
	}
	return nil
}

// Bytes renders an RFC 5322 plain text message with a base64 UTF-8 body
func (m Message) Bytes(now time.Time) []byte {
	var buf bytes.Buffer

	from := mail.Address{Name: m.FromName, Address: m.From}
	domain := "localhost"
	if i := strings.LastIndexByte(m.From, '@'); i >= 0 {
		domain = m.From[i+1:]
	}

	writeHeader(&buf, "From", from.String())
	writeHeader(&buf, "To", joinAddresses(m.To))
	if len(m.Cc) > 0 {
		writeHeader(&buf, "Cc", joinAddresses(m.Cc))
	}
	writeHeader(&buf, "Subject", mime.BEncoding.Encode("UTF-8", m.Subject))
	writeHeader(&buf, "Date", now.Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain))
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", `text/plain; charset="UTF-8"`)
	writeHeader(&buf, "Content-Transfer-Encoding", "base64")
	buf.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(m.Body))
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")

	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func joinAddresses(addrs []string) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			parts = append(parts, (&mail.Address{Address: a}).String())
		}
	}
	return strings.Join(parts, ", ")
}
