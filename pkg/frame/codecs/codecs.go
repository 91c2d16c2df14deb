/*
【ファイル概要: codecs.go】
フレームを送信パケットのペイロード単位に分割するフラグメンタの
共通インタフェースを提供します。
*/
package codecs

// Fragment は1つの出力RTPパケット分のペイロードを表します。単一の
// バッファで済む場合もあれば（STAP-Aヘッダ＋NALU本体のように）複数の
// バッファに分かれる場合もあります。pkg/frame.Transaction.EnqueueBuffers
// へそのまま渡せる形です。
type Fragment struct {
	Buffers   [][]byte
	SetMarker bool
}

// Fragmenter は1フレーム分の生データを、送信すべきパケットのペイロード
// 列に変換します。実装は呼び出しごとに独立しており、内部状態を
// 次のフレームに持ち越しません。
type Fragmenter interface {
	Fragment(mtu int, payload []byte) ([]Fragment, error)
}
