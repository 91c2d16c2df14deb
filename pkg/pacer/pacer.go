/*
【ファイル概要: pacer.go】
プロービングブロックへのパケット分割とセンチネルのスタンプ、帯域に
応じたブロック間スリープを行う Run を提供します。

Run はプロデューサゴルーチン上で同期的に呼ばれ、バックグラウンド
ゴルーチンとしては起動しません。1トランザクション分のパケット列を
ブロック単位に区切りながら送信し、ブロックの先頭と末尾にセンチネルを
スタンプします。
*/
package pacer

import (
	"context"
	"time"

	"github.com/jworuna/uvgRTP-ecn/pkg/frame"
	"github.com/jworuna/uvgRTP-ecn/pkg/rtppacket"
)

// MaxIPv4Payload is the datagram payload size the block-time formula
// assumes.
const MaxIPv4Payload = 1500

// Sender is the socket-facing boundary the pacer sends through. A
// vectored write lets the header, payload buffers and auth tag travel
// as one datagram without an intermediate copy.
type Sender interface {
	SendVectored(buffers [][]byte) error
}

// Run はトランザクションに積まれたパケットをプロービングブロック単位で
// 送信します。呼び出しが戻るときには tx は必ず Release 済みです
// （成功時・エラー時・キャンセル時いずれも）。
func Run(ctx context.Context, tx *frame.Transaction, rs *RateState, sender Sender) error {
	packets := tx.Packets()
	total := len(packets)
	if total == 0 {
		tx.Release()
		return ErrEmptyTransaction
	}

	start := 0
	left := total

	for left > 0 {
		select {
		case <-ctx.Done():
			tx.Release()
			return ErrCancelled
		default:
		}

		blockStart := time.Now()

		snap, shutdown := rs.waitWhileStale(blockStart.UnixMicro())
		if shutdown {
			tx.Release()
			return ErrCancelled
		}

		var end int
		if left > snap.PacketsInBlock {
			end = start + snap.PacketsInBlock
			left -= snap.PacketsInBlock
			if left > 0 && left < snap.PacketsInBlock/2 {
				end += left
				left = 0
			}
		} else {
			end = start + left
			left = 0
		}

		if err := rtppacket.SetSentinel(packets[start].Header, rtppacket.SentinelBlockStart); err != nil {
			tx.Release()
			return err
		}
		if err := rtppacket.SetSentinel(packets[end-1].Header, rtppacket.SentinelBlockEnd); err != nil {
			tx.Release()
			return err
		}

		for i := start; i < end; i++ {
			if err := sendPacket(sender, packets[i]); err != nil {
				tx.Release()
				return ErrSendFailed
			}
		}

		if err := sleepForBlock(ctx, end-start, snap.LoadKbits, blockStart); err != nil {
			tx.Release()
			return err
		}

		start = end
		left = total - start
	}

	tx.Release()
	return nil
}

func sendPacket(sender Sender, pkt *frame.Packet) error {
	buffers := make([][]byte, 0, 2+len(pkt.Buffers))
	buffers = append(buffers, pkt.Header)
	buffers = append(buffers, pkt.Buffers...)
	if len(pkt.AuthTag) > 0 {
		buffers = append(buffers, pkt.AuthTag)
	}
	return sender.SendVectored(buffers)
}

// sleepForBlock はブロック中に送った全パケット分の帯域消費にかかる
// 時間から、すでに経過した時間を差し引いた分だけ待ちます。
// loadKbits はブロックの先頭で1回だけサンプリングされた値です
// （ブロック途中のレート更新は次のブロック境界まで反映しません）。
func sleepForBlock(ctx context.Context, packetsInBlock int, loadKbits int64, blockStart time.Time) error {
	if loadKbits <= 0 {
		loadKbits = MinBitrateKbits
	}

	bytesInBlock := packetsInBlock * MaxIPv4Payload
	blockUs := int64(1e6 * float64(bytesInBlock) / (float64(loadKbits) * 125))
	elapsedUs := time.Since(blockStart).Microseconds()
	waitUs := blockUs - elapsedUs
	if waitUs <= 0 {
		return nil
	}

	select {
	case <-time.After(time.Duration(waitUs) * time.Microsecond):
		return nil
	case <-ctx.Done():
		return ErrCancelled
	}
}
