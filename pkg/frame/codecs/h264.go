/*
【ファイル概要: h264.go】
H.264 (RTP_FORMAT_H264) 用のフラグメンタを提供します。

単一NALUがMTU以下ならそのまま1パケット、超過する場合はFU-A
（RFC 6184 §5.8）に分割します。小さなNALUが複数続く場合はSTAP-Aへ
集約します。ビットレイアウトは pion/rtp/codecs/h264 の Spreader を
下敷きにしています。
*/
package codecs

const (
	h264NALUTypeMask = 0x1F
	h264FUAType       = 28
	h264STAPAType     = 24
	fuaHeaderSize     = 2
)

// H264 は H.264 ペイロード用の Fragmenter です。
type H264 struct{}

// Fragment は単一のNALUをフラグメントします。複数NALUをSTAP-Aへ
// 集約したい場合は FragmentAccessUnit を使ってください。
func (h H264) Fragment(mtu int, payload []byte) ([]Fragment, error) {
	return h.FragmentAccessUnit(mtu, [][]byte{payload})
}

// FragmentAccessUnit は1アクセスユニット分のNALU列をRTPパケットの
// ペイロード列に変換します。MTU以下の隣接する小さなNALUはSTAP-Aに
// まとめ、MTUを超えるNALUはFU-Aに分割します。
func (H264) FragmentAccessUnit(mtu int, nalus [][]byte) ([]Fragment, error) {
	if len(nalus) == 0 {
		return nil, ErrNoNALUs
	}
	if mtu <= 0 {
		return nil, ErrInvalidMTU
	}

	var out []Fragment
	var pending [][]byte
	pendingSize := 0

	flushPending := func() {
		if len(pending) == 0 {
			return
		}
		if len(pending) == 1 {
			out = append(out, Fragment{Buffers: [][]byte{pending[0]}})
		} else {
			out = append(out, aggregateSTAPA(pending))
		}
		pending = nil
		pendingSize = 0
	}

	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}

		if len(nalu) <= mtu {
			// STAP-Aへの集約候補。ただし積み重ねた結果（1バイトの
			// STAP-Aヘッダを含めて）MTUを超えるようなら先に今の
			// ペンディング分を書き出す。
			add := 2 + len(nalu)
			if len(pending) > 0 && 1+pendingSize+add > mtu {
				flushPending()
			}
			pending = append(pending, nalu)
			pendingSize += add
			continue
		}

		flushPending()
		frags, err := fragmentFUA(mtu, nalu)
		if err != nil {
			return nil, err
		}
		out = append(out, frags...)
	}
	flushPending()

	if len(out) > 0 {
		out[len(out)-1].SetMarker = true
	}
	return out, nil
}

// aggregateSTAPA は複数の単純NALUをSTAP-A集約パケット1個にまとめます。
func aggregateSTAPA(nalus [][]byte) Fragment {
	hdr := (nalus[0][0] & 0xE0) | h264STAPAType
	buffers := make([][]byte, 0, len(nalus)*2+1)
	buffers = append(buffers, []byte{hdr})
	for _, n := range nalus {
		buffers = append(buffers, []byte{byte(len(n) >> 8), byte(len(n))}, n)
	}
	return Fragment{Buffers: buffers}
}

// fragmentFUA は単一のNALUをFU-A断片列に分割します。
func fragmentFUA(mtu int, nalu []byte) ([]Fragment, error) {
	if len(nalu) < 1 {
		return nil, ErrNoNALUs
	}

	indicator := (nalu[0] & 0xE0) | h264FUAType
	naluType := nalu[0] & h264NALUTypeMask
	payload := nalu[1:]

	chunkSize := mtu - fuaHeaderSize
	if chunkSize <= 0 {
		return nil, ErrInvalidMTU
	}

	var out []Fragment
	for off := 0; off < len(payload); off += chunkSize {
		end := off + chunkSize
		if end > len(payload) {
			end = len(payload)
		}

		header := naluType
		if off == 0 {
			header |= 0x80 // S bit
		}
		if end == len(payload) {
			header |= 0x40 // E bit
		}

		out = append(out, Fragment{Buffers: [][]byte{{indicator, header}, payload[off:end]}})
	}
	return out, nil
}
