/*
【ファイル概要: ratestate.go】
送信側の共有レート状態 RateState を提供します。

loadKbits / packetsInBlock / lastFeedbackReceivedUs / linkCapacityLow を
1ストリームにつき1つの RateState 値として保持します。所有者はストリーム
で、ペーサーとRTCPフィードバックの両方にポインタとして手渡されます。
1つの sync.Mutex と、それに結び付いた sync.Cond で保護されます。
*/
package pacer

import (
	"sync"
	"time"
)

// MinBitrateKbits はエスティメータが提案する最小ビットレートです。
// 早期フィードバックモード中、送信側はこの値まで loadKbits を
// クランプする契約になっています。
const MinBitrateKbits = 500

// DefaultPacketsInBlock はプロービングブロックの既定サイズです。
const DefaultPacketsInBlock = 10

// FeedbackTimeout はフィードバックが「古い」とみなされるまでの時間です。
const FeedbackTimeout = 2 * time.Second

// RateState は送信側が維持する共有可変状態です。ペーサーはブロックごとに
// 1回だけこれを読み取り、RTCPフィードバックフックが受信レポートのたびに
// 書き込んで Cond をシグナルします。
type RateState struct {
	mu sync.Mutex
	cv *sync.Cond

	loadKbits              int64
	packetsInBlock         int
	lastFeedbackReceivedUs int64
	linkCapacityLow        bool
	shutdown               bool
}

// NewRateState はブロックサイズを DefaultPacketsInBlock として初期化された
// RateState を作成します。loadKbits は MinBitrateKbits から始まります。
func NewRateState() *RateState {
	rs := &RateState{
		loadKbits:      MinBitrateKbits,
		packetsInBlock: DefaultPacketsInBlock,
	}
	rs.cv = sync.NewCond(&rs.mu)
	return rs
}

// Snapshot はペーサーがブロック境界で1回だけ読む値をまとめて返します。
type Snapshot struct {
	LoadKbits              int64
	PacketsInBlock         int
	LastFeedbackReceivedUs int64
	LinkCapacityLow        bool
}

// Snapshot は現在の状態をコピーして返します。
func (rs *RateState) Snapshot() Snapshot {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return Snapshot{
		LoadKbits:              rs.loadKbits,
		PacketsInBlock:         rs.packetsInBlock,
		LastFeedbackReceivedUs: rs.lastFeedbackReceivedUs,
		LinkCapacityLow:        rs.linkCapacityLow,
	}
}

// ApplyFeedback は受信したECNレポートの内容で共有状態を更新し、待機中の
// ペーサーを起こします。呼び出し元(RTCP受信ゴルーチン)はここでブロック
// してはいけません。capacityKbits が0の場合は、直前のレートをそのまま
// 維持します。
func (rs *RateState) ApplyFeedback(capacityKbits int64, earlyFeedbackMode bool, nowUs int64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.lastFeedbackReceivedUs = nowUs
	rs.linkCapacityLow = earlyFeedbackMode

	if earlyFeedbackMode {
		rs.loadKbits = MinBitrateKbits
	} else if capacityKbits > 0 {
		if capacityKbits < MinBitrateKbits {
			capacityKbits = MinBitrateKbits
		}
		rs.loadKbits = capacityKbits
	}

	rs.cv.Broadcast()
}

// SetPacketsInBlock はブロックサイズを変更します。通常は設定時に1回だけ
// 呼ばれます。
func (rs *RateState) SetPacketsInBlock(n int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.packetsInBlock = n
}

// Shutdown はペーサーを待機から解放し、以降のすべての待機を即座に
// 終わらせます。ストリーム破棄時に呼ばれます。
func (rs *RateState) Shutdown() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.shutdown = true
	rs.cv.Broadcast()
}

// isStaleLocked は nowUs 時点でフィードバックが古いか、リンクが
// 輻輳中であるかを返します。rs.mu を保持した状態で呼ぶこと。
func (rs *RateState) isStaleLocked(nowUs int64) bool {
	timeout := nowUs - FeedbackTimeout.Microseconds()
	stale := rs.lastFeedbackReceivedUs > 0 && rs.lastFeedbackReceivedUs <= timeout
	return stale || rs.linkCapacityLow
}

// waitWhileStale は lastFeedbackReceivedUs が古いか linkCapacityLow が
// true である間、最大 200ms だけ条件変数で待機します。Shutdown が
// 呼ばれていれば即座に戻ります。戻り値は待機後の Snapshot です。
func (rs *RateState) waitWhileStale(nowUs int64) (Snapshot, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	deadline := time.Now().Add(200 * time.Millisecond)
	timer := time.AfterFunc(200*time.Millisecond, func() {
		rs.mu.Lock()
		rs.cv.Broadcast()
		rs.mu.Unlock()
	})
	defer timer.Stop()

	for rs.isStaleLocked(nowUs) && !rs.shutdown && time.Now().Before(deadline) {
		rs.cv.Wait()
	}

	return Snapshot{
		LoadKbits:              rs.loadKbits,
		PacketsInBlock:         rs.packetsInBlock,
		LastFeedbackReceivedUs: rs.lastFeedbackReceivedUs,
		LinkCapacityLow:        rs.linkCapacityLow,
	}, rs.shutdown
}
