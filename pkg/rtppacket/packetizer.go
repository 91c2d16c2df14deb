/*
【ファイル概要: packetizer.go】
1ストリーム分のRTPシーケンス番号・タイムスタンプ・SSRCを保持する
Packetizer を提供します。
*/
package rtppacket

import (
	"sync/atomic"

	"github.com/pion/randutil"
)

// Packetizer は1つのRTPストリームが持つ、単調増加するシーケンス番号、
// クロックレートに応じて進むタイムスタンプ、ランダムなSSRCを保持します。
// 並行利用に対して安全です。プロデューサゴルーチンが UpdateSequence/
// FillHeader を呼ぶ一方、別のRTCPゴルーチンが送信レポート用にSSRCを
// 読むことがあるためです。
type Packetizer struct {
	ssrc        uint32
	payloadType uint8
	clockRate   uint32

	sequenceNumber uint32 // atomic操作のためuint32で保持、16ビット境界でラップする
	timestamp      uint32
	sentPackets    uint64
}

// NewPacketizer はランダムなSSRCと開始シーケンス番号を持つ Packetizer
// を作成します（0から始めない、というpion/webrtcのトラック生成と
// 同じ慣習です）。
func NewPacketizer(payloadType uint8, clockRate uint32) (*Packetizer, error) {
	gen := randutil.NewMathRandomGenerator()
	seq, err := gen.Uint32()
	if err != nil {
		return nil, err
	}
	ssrc, err := gen.Uint32()
	if err != nil {
		return nil, err
	}

	return &Packetizer{
		ssrc:           ssrc,
		payloadType:    payloadType,
		clockRate:      clockRate,
		sequenceNumber: seq & 0xffff,
	}, nil
}

// SSRC はストリームの同期ソース識別子を返します。
func (p *Packetizer) SSRC() uint32 { return atomic.LoadUint32(&p.ssrc) }

// PayloadType はすべてのヘッダに書き込まれるRTPペイロードタイプを返します。
func (p *Packetizer) PayloadType() uint8 { return p.payloadType }

// AdvanceTimestamp はRTPタイムスタンプを samples（クロックレート単位）だけ
// 進めます。1フレームをキューに積む前に1回呼び出します。
func (p *Packetizer) AdvanceTimestamp(samples uint32) {
	atomic.AddUint32(&p.timestamp, samples)
}

// ClockRate はストリームのRTPクロックレート（Hz）を返します。
func (p *Packetizer) ClockRate() uint32 { return p.clockRate }

// FillHeader は現在のテンプレート（SSRC、ペイロードタイプ、タイムスタンプ）
// を h に書き込みます。シーケンス番号には触れません。トランザクション
// 初期化時と各エンキュー時にパケットスロットへコピーされます。
// シーケンス番号は UpdateSequence が別に担当するため、呼び出し元は
// 同じテンプレートから複数のヘッダスロットを埋めてから、それぞれに
// シーケンス番号をスタンプできます。
func (p *Packetizer) FillHeader(h *Header) {
	h.Version = version
	h.SSRC = p.SSRC()
	h.PayloadType = p.payloadType
	h.Timestamp = atomic.LoadUint32(&p.timestamp)
}

// UpdateSequence は h のシーケンス番号に次の値をスタンプし、内部カウンタを
// 進めます。16ビットカウンタはRTPの要求通り黙ってラップします。
func (p *Packetizer) UpdateSequence(h *Header) uint16 {
	seq := uint16(atomic.AddUint32(&p.sequenceNumber, 1) - 1)
	h.SequenceNumber = seq
	return seq
}

// IncSentPackets はこのストリームがもう1パケット送信したことを記録します。
func (p *Packetizer) IncSentPackets() {
	atomic.AddUint64(&p.sentPackets, 1)
}

// SentPackets はこのストリームが送信した総パケット数を返します。
func (p *Packetizer) SentPackets() uint64 {
	return atomic.LoadUint64(&p.sentPackets)
}
