// Package boiler carries the small amount of command knowledge the server
// has about Fröling controllers: the two query commands used by the CLI
// and helpers for interpreting their replies. Everything else treats
// payloads as opaque bytes.
package boiler

import (
	"context"
	"fmt"
	"strings"
)

// Command bytes (Befehle) understood by the controller.
const (
	CmdCurrentValues byte = 0x30 // Aktuelle Werte des Kessels
	CmdBoilerState   byte = 0x51 // Kesselzustand abfragen
)

// Sender relays one command to the boiler. *client.Client implements it.
type Sender interface {
	Send(ctx context.Context, cmd byte, payload []byte) ([]byte, error)
}

// ReadState queries the boiler status and returns the raw reply payload.
func ReadState(ctx context.Context, s Sender) ([]byte, error) {
	return s.Send(ctx, CmdBoilerState, nil)
}

// StateText splits the textual part of a state reply into its
// semicolon-separated fields. The first two payload bytes are status
// flags; the rest is ISO 8859-1 text like "Winterbetrieb;Feuer Aus".
func StateText(payload []byte) []string {
	if len(payload) <= 2 {
		return nil
	}
	var b strings.Builder
	for _, c := range payload[2:] {
		b.WriteRune(rune(c))
	}
	return strings.Split(b.String(), ";")
}

// ReadValues queries the current measurements at the given 2-byte
// addresses and returns the raw reply payload: one big-endian 16-bit
// value per requested address, in request order.
func ReadValues(ctx context.Context, s Sender, addrs ...uint16) ([]byte, error) {
	payload := make([]byte, 0, 2*len(addrs))
	for _, a := range addrs {
		payload = append(payload, byte(a>>8), byte(a))
	}
	return s.Send(ctx, CmdCurrentValues, payload)
}

// Value names a readable measurement address.
type Value struct {
	Label string
	Addr  uint16
}

// DefaultCatalog lists the commonly monitored temperatures.
var DefaultCatalog = []Value{
	{"Boiler temperature (Kesseltemperatur)", 0x0000},
	{"Exhaust temperature (Abgastemperatur)", 0x0001},
	{"External temperature (Außentemperatur)", 0x0004},
	{"Buffer top temperature (Puffer 1 oben)", 0x0076},
	{"Buffer bottom temperature (Puffer 1 unten)", 0x0078},
	{"Hot water storage temperature (Boilertemperatur 1)", 0x005d},
}

// FormatTemperature renders raw as a signed big-endian integer with one
// decimal place and the °C unit. Most measurements are reported doubled;
// halved controls the division by 2.
func FormatTemperature(raw []byte, halved bool) string {
	div := 1.0
	if halved {
		div = 2.0
	}
	return fmt.Sprintf("%.1f°C", float64(signedBE(raw))/div)
}

// signedBE interprets b as a big-endian two's-complement integer.
func signedBE(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	v := int64(int8(b[0]))
	for _, x := range b[1:] {
		v = v<<8 | int64(x)
	}
	return v
}
