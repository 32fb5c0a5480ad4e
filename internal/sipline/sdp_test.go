package sipline

import (
	"strings"
	"testing"
)

func TestBuildSDPRoundTrip(t *testing.T) {
	body, err := buildSDP("linegate", "10.0.0.5", 16400, 1, sdpSendRecv)
	if err != nil {
		t.Fatalf("buildSDP() error = %v", err)
	}

	text := string(body)
	for _, want := range []string{
		"m=audio 16400 RTP/AVP 0 101",
		"a=rtpmap:0 PCMU/8000",
		"a=rtpmap:101 telephone-event/8000",
		"a=fmtp:101 0-15",
		"a=sendrecv",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("SDP missing %q:\n%s", want, text)
		}
	}

	remote, err := parseRemoteMedia(body)
	if err != nil {
		t.Fatalf("parseRemoteMedia() error = %v", err)
	}
	if remote.Addr != "10.0.0.5" {
		t.Errorf("Addr = %q, want 10.0.0.5", remote.Addr)
	}
	if remote.Port != 16400 {
		t.Errorf("Port = %d, want 16400", remote.Port)
	}
	if len(remote.Formats) != 2 || remote.Formats[0] != "0" {
		t.Errorf("Formats = %v, want [0 101]", remote.Formats)
	}
}

func TestBuildSDPHoldDirection(t *testing.T) {
	body, err := buildSDP("linegate", "10.0.0.5", 16400, 2, sdpSendOnly)
	if err != nil {
		t.Fatalf("buildSDP() error = %v", err)
	}
	if !strings.Contains(string(body), "a=sendonly") {
		t.Errorf("hold SDP missing a=sendonly:\n%s", body)
	}
	if strings.Contains(string(body), "a=sendrecv") {
		t.Errorf("hold SDP still carries a=sendrecv:\n%s", body)
	}
}

func TestParseRemoteMediaSessionLevelConnection(t *testing.T) {
	raw := "v=0\r\n" +
		"o=- 1 1 IN IP4 192.0.2.10\r\n" +
		"s=-\r\n" +
		"c=IN IP4 192.0.2.10\r\n" +
		"t=0 0\r\n" +
		"m=audio 4000 RTP/AVP 0\r\n" +
		"a=rtpmap:0 PCMU/8000\r\n"

	remote, err := parseRemoteMedia([]byte(raw))
	if err != nil {
		t.Fatalf("parseRemoteMedia() error = %v", err)
	}
	if remote.Addr != "192.0.2.10" {
		t.Errorf("Addr = %q, want session-level 192.0.2.10", remote.Addr)
	}
	if remote.Port != 4000 {
		t.Errorf("Port = %d, want 4000", remote.Port)
	}
}

func TestParseRemoteMediaPrefersMediaLevelConnection(t *testing.T) {
	raw := "v=0\r\n" +
		"o=- 1 1 IN IP4 192.0.2.10\r\n" +
		"s=-\r\n" +
		"c=IN IP4 192.0.2.10\r\n" +
		"t=0 0\r\n" +
		"m=audio 4000 RTP/AVP 0\r\n" +
		"c=IN IP4 198.51.100.7\r\n" +
		"a=rtpmap:0 PCMU/8000\r\n"

	remote, err := parseRemoteMedia([]byte(raw))
	if err != nil {
		t.Fatalf("parseRemoteMedia() error = %v", err)
	}
	if remote.Addr != "198.51.100.7" {
		t.Errorf("Addr = %q, want media-level 198.51.100.7", remote.Addr)
	}
}

func TestParseRemoteMediaErrors(t *testing.T) {
	if _, err := parseRemoteMedia(nil); err == nil {
		t.Error("parseRemoteMedia(nil) did not fail")
	}
	if _, err := parseRemoteMedia([]byte("not sdp")); err == nil {
		t.Error("parseRemoteMedia(garbage) did not fail")
	}

	noMedia := "v=0\r\n" +
		"o=- 1 1 IN IP4 192.0.2.10\r\n" +
		"s=-\r\n" +
		"c=IN IP4 192.0.2.10\r\n" +
		"t=0 0\r\n"
	if _, err := parseRemoteMedia([]byte(noMedia)); err == nil {
		t.Error("parseRemoteMedia() accepted SDP without media")
	}
}
