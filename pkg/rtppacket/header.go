/*
【ファイル概要: header.go】
RTP固定ヘッダ（RFC 3550 5.1節、12バイト）のエンコード/デコードを提供します。

このパッケージは常に1バイトプロファイル拡張ヘッダ（sentinel.go参照）を
付与します。プロービングブロックの境界情報をこの拡張領域に載せるためです。
CSRC識別子は扱いません。本ライブラリがミキサーとして動作することはないためです。
*/
package rtppacket

import (
	"encoding/binary"
	"errors"
)

// HeaderSize は CSRC や拡張を含まない、RTP固定ヘッダ長です。
const HeaderSize = 12

// version はこのパッケージが送受信する唯一のRTPバージョンです。
const version = 2

var (
	// ErrBufferTooSmall は Marshal/Unmarshal に渡されたバッファが
	// ヘッダ全体を格納できないほど小さい場合に返されます。
	ErrBufferTooSmall = errors.New("rtppacket: buffer too small for header")
	// ErrBadVersion は Unmarshal がバージョン2以外を検出した場合に返されます。
	ErrBadVersion = errors.New("rtppacket: unsupported RTP version")
)

// Header はRTPパケットの固定部分を表します。
type Header struct {
	Version        uint8
	Padding        bool
	Extension      bool
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32

	// Sentinel はプロービングブロックの境界マーカーで、Extension が
	// true のとき常に書き込まれる1バイトプロファイル拡張に格納されます。
	// sentinel.go を参照してください。
	Sentinel Sentinel
}

// MarshalSize は本ライブラリが常に付与するセンチネル拡張を含めた、
// h のワイヤサイズを返します。
func (h *Header) MarshalSize() int {
	return HeaderSize + extensionSize
}

// Marshal は h を buf に書き込みます。buf は少なくとも MarshalSize() バイト
// 必要です。
func (h *Header) Marshal(buf []byte) (int, error) {
	if len(buf) < h.MarshalSize() {
		return 0, ErrBufferTooSmall
	}

	buf[0] = version << 6
	if h.Padding {
		buf[0] |= 1 << 5
	}
	// Extension は常にセットする。センチネルワードはここに乗る。
	buf[0] |= 1 << 4

	buf[1] = h.PayloadType & 0x7f
	if h.Marker {
		buf[1] |= 1 << 7
	}

	binary.BigEndian.PutUint16(buf[2:4], h.SequenceNumber)
	binary.BigEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], h.SSRC)

	writeExtension(buf[HeaderSize:HeaderSize+extensionSize], h.Sentinel)

	return h.MarshalSize(), nil
}

// Unmarshal は buf から Header を読み取ります。buf をコピーしないため、
// 呼び出し元は Unmarshal 後に buf を再利用・解放してかまいません。
func (h *Header) Unmarshal(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrBufferTooSmall
	}

	v := buf[0] >> 6
	if v != version {
		return ErrBadVersion
	}

	h.Version = v
	h.Padding = (buf[0]>>5)&1 == 1
	h.Extension = (buf[0]>>4)&1 == 1
	h.Marker = (buf[1]>>7)&1 == 1
	h.PayloadType = buf[1] & 0x7f
	h.SequenceNumber = binary.BigEndian.Uint16(buf[2:4])
	h.Timestamp = binary.BigEndian.Uint32(buf[4:8])
	h.SSRC = binary.BigEndian.Uint32(buf[8:12])

	if h.Extension && len(buf) >= HeaderSize+extensionSize {
		h.Sentinel = readExtension(buf[HeaderSize : HeaderSize+extensionSize])
	}

	return nil
}

// SetSentinel は既にマーシャル済みのヘッダのセンチネルワードだけを
// その場で書き換えます。固定フィールドは再構築しません。
// ペーサーはブロック境界をスタンプするホットパスでこれを使います
// (パケットごとに Header 値を保持していないため、Marshal からの
// 再生成は避けたい)。
func SetSentinel(buf []byte, s Sentinel) error {
	if len(buf) < HeaderSize+extensionSize {
		return ErrBufferTooSmall
	}
	writeExtension(buf[HeaderSize:HeaderSize+extensionSize], s)
	return nil
}
