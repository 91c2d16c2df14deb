/*
【ファイル概要: errors.go】
pacer パッケージのエラー定義です。
*/
package pacer

import "errors"

var (
	// ErrEmptyTransaction はパケットが1つも積まれていないトランザクションを
	// 流そうとした場合に返されます。
	ErrEmptyTransaction = errors.New("pacer: cannot flush an empty transaction")
	// ErrSendFailed はブロック内のいずれかのパケット送信が失敗した場合に
	// 返されます。残りのブロックは中断されます。
	ErrSendFailed = errors.New("pacer: send failed")
	// ErrCancelled はトランザクションが待機中または送信中に破棄された
	// 場合に返されます。
	ErrCancelled = errors.New("pacer: cancelled")
)
