/*
【ファイル概要: errors.go】
dgram パッケージのエラー定義です。
*/
package dgram

import "errors"

var (
	// ErrSocketError はソケットの生成やbindに失敗した場合に返されます。
	ErrSocketError = errors.New("dgram: socket error")
	// ErrBindError はローカルアドレスへのbindに失敗した場合に返されます。
	ErrBindError = errors.New("dgram: bind error")
	// ErrSendError はデータグラムの送信に失敗した場合に返されます。
	ErrSendError = errors.New("dgram: send error")
	// ErrInterrupted は受信待機がソケットのクローズ、読み取りデッドライン
	// の経過、または EINTR によって中断されたことを示す、非致命的な
	// エラーです。
	ErrInterrupted = errors.New("dgram: interrupted")
	// ErrNotSupported はプラットフォームが要求された機能（バッチ送信や
	// per-datagram制御メッセージなど）をサポートしない場合に返されます。
	ErrNotSupported = errors.New("dgram: not supported on this platform")
)
