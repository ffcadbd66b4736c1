package boiler

import (
	"bytes"
	"context"
	"testing"
)

type fakeSender struct {
	cmd     byte
	payload []byte
	reply   []byte
}

func (f *fakeSender) Send(_ context.Context, cmd byte, payload []byte) ([]byte, error) {
	f.cmd = cmd
	f.payload = append([]byte(nil), payload...)
	return f.reply, nil
}

func TestReadValuesBuildsAddressPayload(t *testing.T) {
	s := &fakeSender{reply: []byte{0x00, 0x0b, 0xff, 0xfe}}
	got, err := ReadValues(context.Background(), s, 0x0000, 0x0076)
	if err != nil {
		t.Fatalf("ReadValues: %v", err)
	}
	if s.cmd != CmdCurrentValues {
		t.Fatalf("cmd = %02X, want %02X", s.cmd, CmdCurrentValues)
	}
	if want := []byte{0x00, 0x00, 0x00, 0x76}; !bytes.Equal(s.payload, want) {
		t.Fatalf("payload = % X, want % X", s.payload, want)
	}
	if !bytes.Equal(got, s.reply) {
		t.Fatalf("reply = % X", got)
	}
}

func TestReadState(t *testing.T) {
	s := &fakeSender{reply: append([]byte{0x00, 0x05}, []byte("Winterbetrieb;Feuer Aus")...)}
	got, err := ReadState(context.Background(), s)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if s.cmd != CmdBoilerState || len(s.payload) != 0 {
		t.Fatalf("sent (%02X, % X)", s.cmd, s.payload)
	}
	lines := StateText(got)
	if len(lines) != 2 || lines[0] != "Winterbetrieb" || lines[1] != "Feuer Aus" {
		t.Fatalf("StateText = %q", lines)
	}
}

func TestStateTextShortPayload(t *testing.T) {
	if got := StateText([]byte{0x00, 0x05}); got != nil {
		t.Fatalf("StateText = %q, want nil", got)
	}
}

func TestFormatTemperature(t *testing.T) {
	tests := []struct {
		raw    []byte
		halved bool
		want   string
	}{
		{[]byte{0x00, 0x0b}, true, "5.5°C"},
		{[]byte{0x00, 0x0b}, false, "11.0°C"},
		{[]byte{0xff, 0xfe}, true, "-1.0°C"},
		{[]byte{0xff, 0xff}, false, "-1.0°C"},
		{[]byte{0x00, 0x00}, true, "0.0°C"},
	}
	for _, tc := range tests {
		if got := FormatTemperature(tc.raw, tc.halved); got != tc.want {
			t.Fatalf("FormatTemperature(% X, %v) = %q, want %q", tc.raw, tc.halved, got, tc.want)
		}
	}
}
