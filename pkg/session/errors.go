/*
【ファイル概要: errors.go】
pkg/session が返すセンチネルエラーをまとめます。
*/
package session

import "errors"

var (
	// ErrSendAndReceiveOnly は RCESendOnly と RCEReceiveOnly を同時に
	// 指定した場合に返ります。
	ErrSendAndReceiveOnly = errors.New("session: RCESendOnly and RCEReceiveOnly are mutually exclusive")

	// ErrReceiveOnlyRequiresLocalAddr は RCEReceiveOnly 指定時にローカル
	// アドレスが与えられなかった場合に返ります。
	ErrReceiveOnlyRequiresLocalAddr = errors.New("session: RCEReceiveOnly requires a local address")

	// ErrSendOnlyRequiresRemoteAddr は RCESendOnly 指定時にリモート
	// アドレスが与えられなかった場合に返ります。
	ErrSendOnlyRequiresRemoteAddr = errors.New("session: RCESendOnly requires a remote address")

	// ErrECNRequiresRTCP は RCERTCP を伴わずに RCEECNTraffic を指定した
	// 場合に返ります。ECNフィードバックはRTCPチャネルを通るため。
	ErrECNRequiresRTCP = errors.New("session: RCEECNTraffic requires RCERTCP")

	// ErrStreamClosed はクローズ済みの Stream に対する操作で返ります。
	ErrStreamClosed = errors.New("session: stream is closed")

	// ErrUnknownStream は存在しないキーで Endpoint を検索した場合に
	// 返ります。
	ErrUnknownStream = errors.New("session: unknown stream")
)
