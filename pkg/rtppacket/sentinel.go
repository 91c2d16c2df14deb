/*
【ファイル概要: sentinel.go】
プロービングブロック境界マーカー（センチネル）のエンコード/デコードを提供します。

このパッケージはRFC 8285の1バイトプロファイルヘッダ拡張(0xBEDE)の中に
値を格納します。理解しない受信側には単なる無視可能な拡張要素として
見えるだけにするためです（固定ヘッダの予約領域を壊す代わりに）。
*/
package rtppacket

import "encoding/binary"

// Sentinel はプロービングブロックの境界マーカーです。
type Sentinel uint16

const (
	// SentinelNone はブロックの先頭でも末尾でもないパケットを示します。
	SentinelNone Sentinel = 0
	// SentinelBlockStart はブロックの先頭パケットを示します。
	SentinelBlockStart Sentinel = 0xAAAA
	// SentinelBlockEnd はブロックの末尾パケットを示します。
	SentinelBlockEnd Sentinel = 0xBBBB
)

// extensionProfileOneByte はRFC 8285の1バイトヘッダ拡張プロファイルIDです。
// pion/rtp の ExtensionProfileOneByte と同じ値です。
const extensionProfileOneByte = 0xBEDE

// sentinelExtensionID はこのライブラリがセンチネル要素に割り当てる
// ローカル識別子です。
const sentinelExtensionID = 0xB

// extensionSize はこのパッケージが常に付与する拡張領域の固定長（バイト）です。
// 4バイトの拡張ヘッダ（プロファイル＋ワード長）に続けて、
// 1バイトプロファイル要素1個分（id/lenバイト＋2バイト値＋1バイトパディング）
// を格納します。
const extensionSize = 8

// writeExtension は s を buf にエンコードします。buf は extensionSize バイト
// 必要です。
func writeExtension(buf []byte, s Sentinel) {
	binary.BigEndian.PutUint16(buf[0:2], extensionProfileOneByte)
	binary.BigEndian.PutUint16(buf[2:4], 1) // length: 32bitワード1個分

	// 1バイトヘッダ要素: 上位ニブルがid、下位ニブルが(len-1)。
	// このセンチネル要素は2バイト値を運ぶのでlen-1=1。
	buf[4] = (sentinelExtensionID << 4) | 1
	binary.BigEndian.PutUint16(buf[5:7], uint16(s))
	buf[7] = 0 // ワード境界までパディング
}

// readExtension は buf（writeExtension が生成した extensionSize バイト）
// からセンチネルを復元します。プロファイルや要素IDが一致しない場合
// （他の拡張を付与するピアからのパケットなど）はエラーにせず
// SentinelNone を返します。この上書きを理解しない参加者は
// 影響を受けてはならないためです。
func readExtension(buf []byte) Sentinel {
	if binary.BigEndian.Uint16(buf[0:2]) != extensionProfileOneByte {
		return SentinelNone
	}
	id := buf[4] >> 4
	if id != sentinelExtensionID {
		return SentinelNone
	}
	return Sentinel(binary.BigEndian.Uint16(buf[5:7]))
}

// IsBoundary は s がブロックの両端のいずれかを示すかどうかを返します。
// 1パケットだけのブロックは同じスロットに START と END を続けて
// 書き込み、最終的に END が勝ちます。どちらの値もSTART兼ENDとして
// 扱われます。
func (s Sentinel) IsBoundary() bool {
	return s == SentinelBlockStart || s == SentinelBlockEnd
}
