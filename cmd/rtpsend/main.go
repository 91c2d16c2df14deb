/*
【ファイル概要: main.go (rtpsend)】
ダミーH.265 NALUを一定時間送り続けるサンプル送信側コマンド。
*/
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jworuna/uvgRTP-ecn/pkg/frame/codecs"
	"github.com/jworuna/uvgRTP-ecn/pkg/session"
)

const payloadLen = 20000

func main() {
	receiverIP := flag.String("receiver-ip", "", "receiver IP address")
	receiverPort := flag.Int("receiver-port", 0, "receiver UDP port")
	duration := flag.Duration("duration", 5*time.Second, "how long to send for")
	flag.Parse()

	if *receiverIP == "" || *receiverPort == 0 {
		fmt.Fprintln(os.Stderr, "usage: rtpsend -receiver-ip <ip> -receiver-port <port> [-duration 5s]")
		os.Exit(1)
	}

	senderPort := *receiverPort - 1

	stream, err := session.NewStream(session.StreamConfig{
		LocalAddr:   &net.UDPAddr{Port: senderPort},
		RemoteAddr:  &net.UDPAddr{IP: net.ParseIP(*receiverIP), Port: *receiverPort},
		PayloadType: 96,
		ClockRate:   90000,
		MTU:         1400,
		Flags:       session.RCERTCP | session.RCEECNTraffic,
		Fragmenter:  codecs.H265{},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create stream:", err)
		os.Exit(1)
	}
	defer stream.Close()
	stream.Start()

	frame := make([]byte, payloadLen)
	for i := range frame {
		frame[i] = 'a'
	}
	// H.265 NALU header + IDR type, for a placeholder keyframe.
	frame[0], frame[1], frame[2] = 0, 0, 1
	frame[4] = 19 << 1

	deadline := time.Now().Add(*duration)
	for i := 0; time.Now().Before(deadline); i++ {
		if (i+1)%10 == 0 || i == 0 {
			fmt.Printf("sending frame %d\n", i+1)
		}
		if err := stream.PushFrame(frame); err != nil {
			fmt.Fprintln(os.Stderr, "failed to send RTP frame:", err)
		}
	}

	fmt.Println("sending finished")
}
