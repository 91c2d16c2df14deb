/*
【ファイル概要: main.go (rtcpsend)】
生成ジェネリックフレームを一定フレームレートで送信し、受信した
ECNレポートに応じてフレームサイズを capacity_kbits に追従させる
サンプル送信側コマンド。
*/
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/jworuna/uvgRTP-ecn/pkg/pacer"
	"github.com/jworuna/uvgRTP-ecn/pkg/rtcpext"
	"github.com/jworuna/uvgRTP-ecn/pkg/session"
)

const (
	localPort    = 8888
	remotePort   = 8890
	frameRate    = 30
	minPayload   = 1400 * 3
	packetPeriod = time.Second / frameRate
)

func main() {
	receiverIP := flag.String("receiver-ip", "", "receiver IP address")
	linkUsageScale := flag.Float64("link-usage", 0.6, "fraction of estimated capacity to fill, [0..1]")
	duration := flag.Duration("duration", 30*time.Second, "how long to send for")
	flag.Parse()

	if *receiverIP == "" {
		fmt.Fprintln(os.Stderr, "usage: rtcpsend -receiver-ip <ip> [-link-usage 0.6] [-duration 30s]")
		os.Exit(1)
	}

	capacityKbits := int64(pacer.MinBitrateKbits * 4)
	congested := false

	stream, err := session.NewStream(session.StreamConfig{
		LocalAddr:   &net.UDPAddr{Port: localPort},
		RemoteAddr:  &net.UDPAddr{IP: net.ParseIP(*receiverIP), Port: remotePort},
		PayloadType: 96,
		ClockRate:   90000,
		MTU:         1400,
		Flags:       session.RCERTCP | session.RCEECNTraffic | session.RCEFragmentGeneric | session.RCESystemCallClustering,
		OnECNReport: func(r rtcpext.ECNReport) {
			printECNReport(r, &capacityKbits, &congested)
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create stream:", err)
		os.Exit(1)
	}
	defer stream.Close()
	stream.Start()

	start := time.Now()
	deadline := start.Add(*duration)
	for i := 0; time.Now().Before(deadline); i++ {
		frameSizeByte := int(float64(capacityKbits*1000)**linkUsageScale) / (frameRate * 8)
		if frameSizeByte < minPayload {
			frameSizeByte = minPayload
		}

		fmt.Println("sending RTP frame size " + strconv.Itoa(frameSizeByte) + " byte")

		buf := make([]byte, frameSizeByte)
		for j := range buf {
			buf[j] = 'a'
		}
		buf[0], buf[1], buf[2] = 0, 0, 1
		buf[4] = 19 << 1

		if err := stream.PushFrame(buf); err != nil {
			fmt.Fprintln(os.Stderr, "failed to send RTP frame:", err)
		}

		waitUntilNextFrame(start, i)
	}

	fmt.Println("sending finished")
}

func waitUntilNextFrame(start time.Time, frameIndex int) {
	sinceStart := time.Since(start)
	nextFrameAt := time.Duration(frameIndex+1) * packetPeriod
	if nextFrameAt > sinceStart {
		time.Sleep(nextFrameAt - sinceStart)
	}
}

// printECNReport tracks congestion state across reports and prints
// transitions as they happen.
func printECNReport(report rtcpext.ECNReport, capacityKbits *int64, congested *bool) {
	fmt.Printf("ECN report from %d packets %d ecn-ce %d capacity %d kbits early_feedback_mode %v\n",
		report.SSRC, report.PacketCountTW, report.ECTCECountTW, report.CapacityKbits, report.EarlyFeedbackMode)

	if report.CapacityKbits > 0 {
		*capacityKbits = int64(report.CapacityKbits)
	}
	switch {
	case !*congested && report.EarlyFeedbackMode:
		*congested = true
		*capacityKbits = pacer.MinBitrateKbits
		fmt.Println("congestion experienced, using min bitrate")
	case *congested && !report.EarlyFeedbackMode:
		*congested = false
		fmt.Printf("congestion over, bitrate %d kbits\n", *capacityKbits)
	}
}
