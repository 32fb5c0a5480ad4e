package sipline

import (
	"fmt"

	psdp "github.com/pion/sdp/v3"
)

// SDP media direction attributes.
const (
	sdpSendRecv = "sendrecv"
	sdpSendOnly = "sendonly"
	sdpRecvOnly = "recvonly"
	sdpInactive = "inactive"
)

// remoteMedia is the far end's RTP endpoint extracted from an SDP body.
type remoteMedia struct {
	Addr    string
	Port    int
	Formats []string
}

// parseRemoteMedia extracts the audio endpoint from an SDP offer or answer.
// The connection address is taken from the media description when present,
// falling back to the session-level connection line.
func parseRemoteMedia(body []byte) (*remoteMedia, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty SDP body")
	}

	sdpObj := &psdp.SessionDescription{}
	if err := sdpObj.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("parse SDP: %w", err)
	}

	if len(sdpObj.MediaDescriptions) == 0 {
		return nil, fmt.Errorf("no media descriptions in SDP")
	}

	mediaDesc := sdpObj.MediaDescriptions[0]
	media := &remoteMedia{
		Port:    mediaDesc.MediaName.Port.Value,
		Formats: mediaDesc.MediaName.Formats,
	}

	if mediaDesc.ConnectionInformation != nil && mediaDesc.ConnectionInformation.Address != nil {
		media.Addr = mediaDesc.ConnectionInformation.Address.Address
	} else if sdpObj.ConnectionInformation != nil && sdpObj.ConnectionInformation.Address != nil {
		media.Addr = sdpObj.ConnectionInformation.Address.Address
	}

	if media.Addr == "" {
		return nil, fmt.Errorf("no connection address in SDP")
	}
	return media, nil
}

// buildSDP produces an audio SDP body for the given local endpoint. The
// direction attribute carries the hold state on re-INVITEs; sendrecv is
// used for normal two-way audio.
func buildSDP(username, localAddr string, localPort int, sessionVersion uint64, direction string) ([]byte, error) {
	formats := []string{"0", "101"}

	attrs := []psdp.Attribute{
		{Key: "rtpmap", Value: "0 PCMU/8000"},
		{Key: "rtpmap", Value: "101 telephone-event/8000"},
		{Key: "fmtp", Value: "101 0-15"},
		{Key: "ptime", Value: "20"},
		{Key: direction},
	}

	sessionDesc := &psdp.SessionDescription{
		Origin: psdp.Origin{
			Username:       username,
			SessionID:      1,
			SessionVersion: sessionVersion,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: localAddr,
		},
		SessionName: "Linegate Audio Session",
		ConnectionInformation: &psdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address: &psdp.Address{
				Address: localAddr,
			},
		},
		TimeDescriptions: []psdp.TimeDescription{
			{
				Timing: psdp.Timing{StartTime: 0, StopTime: 0},
			},
		},
		MediaDescriptions: []*psdp.MediaDescription{
			{
				MediaName: psdp.MediaName{
					Media:   "audio",
					Port:    psdp.RangedPort{Value: localPort},
					Protos:  []string{"RTP", "AVP"},
					Formats: formats,
				},
				Attributes: attrs,
			},
		},
	}

	body, err := sessionDesc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal SDP: %w", err)
	}
	return body, nil
}
