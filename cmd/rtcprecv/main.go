/*
【ファイル概要: main.go (rtcprecv)】
送信側からのRTPストリームを受信しつつ、ECN観測ウィンドウが閉じる
たびに生成されるECNレポートを標準出力に出すサンプル受信側コマンド。
*/
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jworuna/uvgRTP-ecn/pkg/rtcpext"
	"github.com/jworuna/uvgRTP-ecn/pkg/session"
)

const (
	localPort  = 8890
	remotePort = 8888
)

func main() {
	senderIP := flag.String("sender-ip", "", "sender IP address")
	duration := flag.Duration("duration", 600*time.Second, "how long to keep the stream open")
	flag.Parse()

	if *senderIP == "" {
		fmt.Fprintln(os.Stderr, "usage: rtcprecv -sender-ip <ip> [-duration 600s]")
		os.Exit(1)
	}

	fmt.Println("starting RTCP hook receiver, sender IP", *senderIP)

	stream, err := session.NewStream(session.StreamConfig{
		LocalAddr:                   &net.UDPAddr{Port: localPort},
		RemoteAddr:                  &net.UDPAddr{IP: net.ParseIP(*senderIP), Port: remotePort},
		PayloadType:                 96,
		ClockRate:                   90000,
		MTU:                         1400,
		Flags:                       session.RCERTCP | session.RCEECNTraffic,
		RCCECNAggregationTimeWindow: 100 * time.Millisecond,
		OnECNReport:                 printInboundReport,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create stream:", err)
		os.Exit(1)
	}
	defer stream.Close()
	stream.Start()

	time.Sleep(*duration)
}

func printInboundReport(r rtcpext.ECNReport) {
	fmt.Printf("ECN report ssrc %d packets %d ecn-ce %d capacity %d kbits early_feedback_mode %v\n",
		r.SSRC, r.PacketCountTW, r.ECTCECountTW, r.CapacityKbits, r.EarlyFeedbackMode)
}
