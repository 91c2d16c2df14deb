/*
【ファイル概要: ecnreport.go】
ECNフィードバックをRTCP application-defined パケット（RFC 3550 APP、
4文字タグ）として運ぶ ECNReport を提供します。

ワイヤ上のペイロードは固定長:
  ssrc(4) | packet_count_tw(4) | ect_ce_count_tw(4) | capacity_kbits(4)
  | early_feedback_mode(1) | reserved(3)

pion/rtcp の ApplicationDefined（Name='ECN1'）にこのペイロードを
Data として載せる。ワイヤ形状・パディング規則は pion/rtcp の
ApplicationDefined.Marshal/Unmarshal にそのまま委譲する。
*/
package rtcpext

import (
	"encoding/binary"

	"github.com/pion/rtcp"
)

// applicationName is the 4-CC tag identifying an ECN report among other
// application-defined RTCP packets.
var applicationName = [4]byte{'E', 'C', 'N', '1'}

const payloadSize = 4 + 4 + 4 + 4 + 1 + 3

// ECNReport is one sender-to-receiver-direction-agnostic ECN feedback
// message: the receiver fills it from a closed Window and the
// Estimator, the sender decodes it to drive RateState.
type ECNReport struct {
	SSRC              uint32
	PacketCountTW     uint32
	ECTCECountTW      uint32
	CapacityKbits     uint32
	EarlyFeedbackMode bool
}

// Encode returns an RTCP packet ready to append to a compound packet.
func (r ECNReport) Encode() rtcp.Packet {
	payload := make([]byte, payloadSize)
	binary.BigEndian.PutUint32(payload[0:4], r.SSRC)
	binary.BigEndian.PutUint32(payload[4:8], r.PacketCountTW)
	binary.BigEndian.PutUint32(payload[8:12], r.ECTCECountTW)
	binary.BigEndian.PutUint32(payload[12:16], r.CapacityKbits)
	if r.EarlyFeedbackMode {
		payload[16] = 1
	}

	return &rtcp.ApplicationDefined{
		SSRC: r.SSRC,
		Name: applicationName,
		Data: payload,
	}
}

// DecodeECNReport extracts an ECNReport from an already-parsed RTCP
// packet, or reports ok=false if p is not an ECN application-defined
// packet (wrong type or wrong 4-CC tag).
func DecodeECNReport(p rtcp.Packet) (ECNReport, bool) {
	app, ok := p.(*rtcp.ApplicationDefined)
	if !ok || app.Name != applicationName || len(app.Data) < payloadSize {
		return ECNReport{}, false
	}

	return ECNReport{
		SSRC:              app.SSRC,
		PacketCountTW:     binary.BigEndian.Uint32(app.Data[4:8]),
		ECTCECountTW:      binary.BigEndian.Uint32(app.Data[8:12]),
		CapacityKbits:     binary.BigEndian.Uint32(app.Data[12:16]),
		EarlyFeedbackMode: app.Data[16] != 0,
	}, true
}
