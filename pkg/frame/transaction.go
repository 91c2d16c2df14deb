/*
【ファイル概要: transaction.go】
1フレーム分の送信トランザクションを保持する Transaction を提供します。

1ストリームにつき同時にアクティブなトランザクションは1つだけです。
既存のトランザクションがアクティブなまま Init を呼ぶと、先に古い
トランザクションを破棄してから開始します。
*/
package frame

import (
	"sync"

	"github.com/jworuna/uvgRTP-ecn/pkg/rtppacket"
)

// AuthTagSize は認証タグ付きRTPが有効なときに1パケットごとに予約される
// SRTP 認証タグのスロットサイズです。実際の暗号処理は本ライブラリの
// 範囲外で、Transaction はスロットを確保するだけです。
const AuthTagSize = 10

// Packet は構築中の1データグラム分の姿を表します。マーシャル済みの
// RTPヘッダ（センチネルをその場で書き換えられる）、ワイヤ順に連結される
// 0個以上のペイロードバッファ、任意のSRTP認証タグスロットから成ります。
type Packet struct {
	Header  []byte
	Buffers [][]byte
	AuthTag []byte
}

// Bytes は p のワイヤバイト列を連結して返します。確保を伴うため、
// 送信のホットパスでは Header/Buffers/AuthTag をそれぞれ個別に
// ベクタI/O（net.Buffers や WriteBatch）へ渡すほうが望ましいです。
func (p *Packet) Bytes() []byte {
	n := len(p.Header) + len(p.AuthTag)
	for _, b := range p.Buffers {
		n += len(b)
	}
	out := make([]byte, 0, n)
	out = append(out, p.Header...)
	for _, b := range p.Buffers {
		out = append(out, b...)
	}
	out = append(out, p.AuthTag...)
	return out
}

// Transaction は1フレームを構成するパケット列を蓄積します。
type Transaction struct {
	mu          sync.Mutex
	packetizer  *rtppacket.Packetizer
	authEnabled bool

	active   bool
	released bool
	packets  []*Packet
}

// NewTransaction は packetizer を参照する Transaction を作成します。
// authEnabled が true のとき、各パケットに AuthTagSize 分のSRTP認証タグ
// スロットを確保します。
func NewTransaction(packetizer *rtppacket.Packetizer, authEnabled bool) *Transaction {
	return &Transaction{packetizer: packetizer, authEnabled: authEnabled}
}

// Init は新しいトランザクションを開始します。前のトランザクションが
// アクティブなまま呼ばれた場合は、それを破棄してから開始します
// （reinit-aborts-active）。samples が0より大きい場合、この呼び出しが
// 積む全パケットに載るRTPタイムスタンプを先に samples だけ進めます。
// 1フレームのパケットはすべて同じタイムスタンプを共有するため、
// どのパケットもまだ積まれていないこの時点で一度だけ進めます。
func (t *Transaction) Init(samples uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		t.releaseLocked()
	}
	if samples > 0 {
		t.packetizer.AdvanceTimestamp(samples)
	}
	t.active = true
	t.released = false
	t.packets = t.packets[:0]
}

// Release はトランザクションのパケットスラブを破棄します。複数回呼んでも
// 安全です（2回目以降は何もしません）。
func (t *Transaction) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked()
}

func (t *Transaction) releaseLocked() {
	if t.released {
		return
	}
	t.packets = nil
	t.active = false
	t.released = true
}

// Active はトランザクションが現在アクティブかどうかを返します。
func (t *Transaction) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Packets はこれまでに構築されたパケットスラブを返します。呼び出し元は
// 次の Init/Release の後までこのスライスを保持してはいけません。
func (t *Transaction) Packets() []*Packet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.packets
}

// AuthTagSlot はインデックス i のパケットに確保された認証タグスロットを
// 返します。SRTPの実装自体はこのライブラリの範囲外なので、外部の
// 認証器がここに書き込む想定です。範囲外の場合は nil を返します。
func (t *Transaction) AuthTagSlot(i int) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.packets) {
		return nil
	}
	return t.packets[i].AuthTag
}

// newHeaderLocked は現在のテンプレートから新しいヘッダスロットを
// マーシャルし、シーケンス番号をスタンプして返します。呼び出し元は
// t.mu を保持している必要があります。
func (t *Transaction) newHeaderLocked() []byte {
	h := &rtppacket.Header{}
	t.packetizer.FillHeader(h)
	t.packetizer.UpdateSequence(h)

	buf := make([]byte, h.MarshalSize())
	// buf は厳密なサイズで確保しているため、ここでのエラーはあり得ない。
	_, _ = h.Marshal(buf)
	t.packetizer.IncSentPackets()
	return buf
}
