/*
【ファイル概要: errors.go】
codecs パッケージ共通のエラー定義です。
*/
package codecs

import "errors"

var (
	ErrEmptyPayload = errors.New("codecs: payload is empty")
	ErrInvalidMTU   = errors.New("codecs: mtu must be positive")
	ErrNoNALUs      = errors.New("codecs: access unit contains no NAL units")
)
