/*
【ファイル概要: fallback_fd.go】
パケットごとの制御メッセージに対応していないプラットフォーム向けの
フォールバックを提供します。ソケット全体に対して一度だけ setsockopt
で TOS/TCLASS を設定する、より粗い代替手段です。
*/
package dgram

import (
	"net"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// setSocketWideECN はソケット全体のTOS/TCLASSを1回だけ設定します。
// per-datagramの制御メッセージが使えない環境向けのフォールバックです。
func setSocketWideECN(conn *net.UDPConn, ect ECN, v6 bool) error {
	fd := int(netfd.GetFdFromConn(conn))

	tos := tosWithECN(0, ect)
	if v6 {
		return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS, tos)
}
